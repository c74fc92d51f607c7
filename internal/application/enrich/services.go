package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// Retry discipline for the AI collaborator. Only rate-limit failures are
// retried; everything else is terminal for the finding.
const (
	maxAttempts  = 5
	baseDelay    = 5 * time.Second
	itemCooldown = 2 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("an enrichment process is already running")
	ErrNotRunning     = errors.New("no enrichment process is running")
)

// State is the run snapshot polled by the dashboard.
type State struct {
	IsRunning   bool    `json:"is_running"`
	Progress    int     `json:"progress"`
	Total       int     `json:"total"`
	Message     string  `json:"message"`
	WaitSeconds float64 `json:"wait_seconds"`
}

// Service owns the single process-wide enrichment run. One mutex guards the
// run state and the stop flag; the worker goroutine and HTTP callers share
// nothing else.
type Service struct {
	Findings findings.Repository
	Enricher ai.Enricher

	// Sleep seam so backoff is easy to test
	Sleep func(time.Duration)

	mu      sync.Mutex
	state   State
	stopped bool
}

func NewService(repo findings.Repository, enricher ai.Enricher) *Service {
	return &Service{
		Findings: repo,
		Enricher: enricher,
		Sleep:    time.Sleep,
		state:    State{Message: "Idle"},
	}
}

// Start launches a background run for the project. At most one run exists
// process-wide regardless of project; a second start is rejected.
func (s *Service) Start(projectID, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ai.ErrAPIKeyMissing
	}

	s.mu.Lock()
	if s.state.IsRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stopped = false
	s.state = State{IsRunning: true, Message: "Preparing..."}
	s.mu.Unlock()

	go s.run(projectID, apiKey)
	return nil
}

// Stop requests cooperative cancellation. The worker observes it before each
// finding and on every backoff tick; the in-flight call is not aborted.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsRunning {
		return ErrNotRunning
	}
	s.stopped = true
	return nil
}

// Status returns a copy of the current run state.
func (s *Service) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Service) setState(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	s.mu.Unlock()
}

// run executes one enrichment pass until done. It deliberately uses
// context.Background(): the run outlives the request that started it.
func (s *Service) run(projectID, apiKey string) {
	ctx := context.Background()
	defer s.setState(func(st *State) { st.IsRunning = false })

	// Informational findings never reach the network; failed ones from the
	// previous run get another chance. Both are single-statement updates.
	if err := s.Findings.BulkResetStatus(ctx, projectID,
		[]findings.Status{findings.StatusPending, findings.StatusFailed},
		findings.StatusSkipped, findings.SeverityInfo); err != nil {
		s.failStart(projectID, err)
		return
	}
	if err := s.Findings.BulkResetStatus(ctx, projectID,
		[]findings.Status{findings.StatusFailed},
		findings.StatusPending, ""); err != nil {
		s.failStart(projectID, err)
		return
	}

	pending, err := s.Findings.ListPending(ctx, projectID)
	if err != nil {
		s.failStart(projectID, err)
		return
	}
	if len(pending) == 0 {
		s.setState(func(st *State) { st.Message = "No actionable findings to enrich." })
		return
	}

	s.setState(func(st *State) {
		st.Total = len(pending)
		st.Message = "Starting enrichment..."
	})

	for i, f := range pending {
		if s.stopRequested() {
			s.setState(func(st *State) { st.Message = "Enrichment stopped by user." })
			return
		}
		s.setState(func(st *State) {
			st.Progress = i
			st.Message = fmt.Sprintf("Enriching %d/%d: %s", i+1, len(pending), f.Title)
		})

		result, status, errMsg := s.enrichWithBackoff(ctx, apiKey, f)

		var analysis, poc string
		if result != nil {
			analysis, poc = result.Analysis, result.ProofOfConcept
		}
		if err := s.Findings.UpdateEnrichment(ctx, f.ID, status, analysis, poc, errMsg); err != nil {
			log.Printf("enrich: persist failed for finding=%s: %v", f.ID, err)
		}

		// proactive cooldown to stay under the provider's rate limit
		if status == findings.StatusCompleted {
			s.Sleep(itemCooldown)
		}
	}

	s.setState(func(st *State) {
		st.Progress = st.Total
		if !s.stopped {
			st.Message = "Enrichment complete."
		} else {
			st.Message = "Enrichment stopped by user."
		}
	})
}

func (s *Service) failStart(projectID string, err error) {
	log.Printf("enrich: run aborted for project=%s: %v", projectID, err)
	s.setState(func(st *State) { st.Message = "Enrichment failed to start." })
}

// enrichWithBackoff calls the enricher for one finding, retrying rate-limit
// failures with exponential backoff and jitter. The wait is published to the
// run state and slept in 1-second ticks so a stop request lands within ~1s.
func (s *Service) enrichWithBackoff(ctx context.Context, apiKey string, f *findings.Finding) (*ai.Enrichment, findings.Status, string) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if s.stopRequested() {
			return nil, findings.StatusFailed, "Process stopped by user."
		}

		result, err := s.Enricher.Enrich(ctx, apiKey, f)
		if err == nil {
			return result, findings.StatusCompleted, ""
		}
		if !errors.Is(err, ai.ErrRateLimited) {
			return nil, findings.StatusFailed, err.Error()
		}

		delay := baseDelay*time.Duration(1<<attempt) + time.Duration(rand.Float64()*float64(time.Second))
		s.setState(func(st *State) { st.WaitSeconds = delay.Seconds() })
		for tick := 0; tick < int(delay.Seconds()); tick++ {
			if s.stopRequested() {
				s.setState(func(st *State) { st.WaitSeconds = 0 })
				return nil, findings.StatusFailed, "Process stopped by user."
			}
			s.Sleep(time.Second)
		}
		s.setState(func(st *State) { st.WaitSeconds = 0 })
	}
	return nil, findings.StatusFailed, "Failed after multiple retries due to rate limiting (429)."
}

package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

type enrichmentUpdate struct {
	status   findings.Status
	analysis string
	poc      string
	errMsg   string
}

type resetCall struct {
	from      []findings.Status
	to        findings.Status
	onlyLevel findings.Severity
}

type fakeFindingRepo struct {
	mu      sync.Mutex
	pending []*findings.Finding
	updates map[findings.FindingID]enrichmentUpdate
	resets  []resetCall
}

func newFakeFindingRepo(pending ...*findings.Finding) *fakeFindingRepo {
	return &fakeFindingRepo{
		pending: pending,
		updates: map[findings.FindingID]enrichmentUpdate{},
	}
}

func (r *fakeFindingRepo) ListByProject(ctx context.Context, projectID string, f findings.Filter) ([]*findings.Finding, error) {
	return nil, nil
}

func (r *fakeFindingRepo) ListPending(ctx context.Context, projectID string) ([]*findings.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*findings.Finding(nil), r.pending...), nil
}

func (r *fakeFindingRepo) UpdateEnrichment(ctx context.Context, id findings.FindingID, status findings.Status, analysis, poc, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[id] = enrichmentUpdate{status: status, analysis: analysis, poc: poc, errMsg: errMsg}
	return nil
}

func (r *fakeFindingRepo) BulkResetStatus(ctx context.Context, projectID string, from []findings.Status, to findings.Status, onlyLevel findings.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, resetCall{from: from, to: to, onlyLevel: onlyLevel})
	return nil
}

// scriptedEnricher answers the nth call with whatever the script says.
type scriptedEnricher struct {
	mu     sync.Mutex
	calls  int
	script func(call int, f *findings.Finding) (*ai.Enrichment, error)
}

func (e *scriptedEnricher) Enrich(ctx context.Context, apiKey string, f *findings.Finding) (*ai.Enrichment, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()
	return e.script(n, f)
}

func (e *scriptedEnricher) Ping(ctx context.Context, apiKey string) error { return nil }

func (e *scriptedEnricher) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// sleepRecorder replaces the Sleep seam so backoff is observable and instant.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
}

func (s *sleepRecorder) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.sleeps {
		if got == d {
			n++
		}
	}
	return n
}

func waitDone(t *testing.T, svc *Service) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := svc.Status()
		if !st.IsRunning {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("enrichment run did not finish in time")
	return State{}
}

func okEnrichment(call int, f *findings.Finding) (*ai.Enrichment, error) {
	return &ai.Enrichment{Analysis: "analysis of " + f.Title, ProofOfConcept: "poc"}, nil
}

func TestStart_RejectsMissingKey(t *testing.T) {
	svc := NewService(newFakeFindingRepo(), &scriptedEnricher{script: okEnrichment})
	assert.ErrorIs(t, svc.Start("p1", ""), ai.ErrAPIKeyMissing)
	assert.ErrorIs(t, svc.Start("p1", "   "), ai.ErrAPIKeyMissing)
	assert.False(t, svc.Status().IsRunning)
}

func TestStart_RejectsSecondRun(t *testing.T) {
	gate := make(chan struct{})
	enricher := &scriptedEnricher{script: func(int, *findings.Finding) (*ai.Enrichment, error) {
		<-gate
		return &ai.Enrichment{Analysis: "a", ProofOfConcept: "p"}, nil
	}}
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	svc := NewService(repo, enricher)
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	assert.ErrorIs(t, svc.Start("p1", "key"), ErrAlreadyRunning)
	assert.ErrorIs(t, svc.Start("p2", "key"), ErrAlreadyRunning)

	close(gate)
	waitDone(t, svc)
}

func TestStop_WithoutRun(t *testing.T) {
	svc := NewService(newFakeFindingRepo(), &scriptedEnricher{script: okEnrichment})
	assert.ErrorIs(t, svc.Stop(), ErrNotRunning)
}

func TestRun_EnrichesAllPending(t *testing.T) {
	repo := newFakeFindingRepo(
		&findings.Finding{ID: "f1", Title: "Reentrancy Eth"},
		&findings.Finding{ID: "f2", Title: "Unchecked Transfer"},
	)
	sleeps := &sleepRecorder{}
	svc := NewService(repo, &scriptedEnricher{script: okEnrichment})
	svc.Sleep = sleeps.sleep

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, "Enrichment complete.", st.Message)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Progress)
	assert.Zero(t, st.WaitSeconds)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.updates, 2)
	for _, id := range []findings.FindingID{"f1", "f2"} {
		u := repo.updates[id]
		assert.Equal(t, findings.StatusCompleted, u.status)
		assert.NotEmpty(t, u.analysis)
		assert.NotEmpty(t, u.poc)
		assert.Empty(t, u.errMsg)
	}

	// one cooldown per completed item
	assert.Equal(t, 2, sleeps.count(itemCooldown))
}

func TestRun_ResetStatusesBeforeListing(t *testing.T) {
	repo := newFakeFindingRepo()
	svc := NewService(repo, &scriptedEnricher{script: okEnrichment})
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, "No actionable findings to enrich.", st.Message)
	assert.Zero(t, st.Total)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.resets, 2)

	// informational findings are skipped outright
	assert.Equal(t, []findings.Status{findings.StatusPending, findings.StatusFailed}, repo.resets[0].from)
	assert.Equal(t, findings.StatusSkipped, repo.resets[0].to)
	assert.Equal(t, findings.SeverityInfo, repo.resets[0].onlyLevel)

	// previously failed findings get another chance
	assert.Equal(t, []findings.Status{findings.StatusFailed}, repo.resets[1].from)
	assert.Equal(t, findings.StatusPending, repo.resets[1].to)
	assert.Empty(t, repo.resets[1].onlyLevel)
}

func TestRun_RetriesRateLimitThenSucceeds(t *testing.T) {
	enricher := &scriptedEnricher{script: func(call int, f *findings.Finding) (*ai.Enrichment, error) {
		if call <= 2 {
			return nil, ai.ErrRateLimited
		}
		return &ai.Enrichment{Analysis: "a", ProofOfConcept: "p"}, nil
	}}
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	sleeps := &sleepRecorder{}
	svc := NewService(repo, enricher)

	var waitMu sync.Mutex
	var maxWait float64
	svc.Sleep = func(d time.Duration) {
		sleeps.sleep(d)
		if w := svc.Status().WaitSeconds; w > 0 {
			waitMu.Lock()
			if w > maxWait {
				maxWait = w
			}
			waitMu.Unlock()
		}
	}

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, "Enrichment complete.", st.Message)
	assert.Equal(t, 3, enricher.callCount())

	waitMu.Lock()
	assert.GreaterOrEqual(t, maxWait, 5.0, "backoff wait must be visible to pollers")
	waitMu.Unlock()
	assert.Zero(t, st.WaitSeconds, "wait resets once the backoff ends")

	repo.mu.Lock()
	u := repo.updates["f1"]
	repo.mu.Unlock()
	assert.Equal(t, findings.StatusCompleted, u.status)
	assert.Empty(t, u.errMsg)

	// 5s then 10s of backoff, slept in one-second ticks (jitter adds less
	// than a full extra second)
	assert.Equal(t, 15, sleeps.count(time.Second))
	assert.Equal(t, 1, sleeps.count(itemCooldown))
}

func TestRun_RateLimitExhaustion(t *testing.T) {
	enricher := &scriptedEnricher{script: func(int, *findings.Finding) (*ai.Enrichment, error) {
		return nil, ai.ErrRateLimited
	}}
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	svc := NewService(repo, enricher)
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, maxAttempts, enricher.callCount())
	assert.Equal(t, "Enrichment complete.", st.Message)

	repo.mu.Lock()
	u := repo.updates["f1"]
	repo.mu.Unlock()
	assert.Equal(t, findings.StatusFailed, u.status)
	assert.Equal(t, "Failed after multiple retries due to rate limiting (429).", u.errMsg)
	assert.Empty(t, u.analysis)
}

func TestRun_NonRateLimitErrorIsTerminal(t *testing.T) {
	enricher := &scriptedEnricher{script: func(int, *findings.Finding) (*ai.Enrichment, error) {
		return nil, errors.New("model returned malformed payload")
	}}
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	svc := NewService(repo, enricher)
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	waitDone(t, svc)

	assert.Equal(t, 1, enricher.callCount(), "terminal errors are not retried")

	repo.mu.Lock()
	u := repo.updates["f1"]
	repo.mu.Unlock()
	assert.Equal(t, findings.StatusFailed, u.status)
	assert.Equal(t, "model returned malformed payload", u.errMsg)
}

func TestRun_StopBetweenFindings(t *testing.T) {
	var svc *Service
	enricher := &scriptedEnricher{}
	enricher.script = func(call int, f *findings.Finding) (*ai.Enrichment, error) {
		if call == 1 {
			// the in-flight item finishes, the next one is never started
			assert.NoError(t, svc.Stop())
		}
		return &ai.Enrichment{Analysis: "a", ProofOfConcept: "p"}, nil
	}
	repo := newFakeFindingRepo(
		&findings.Finding{ID: "f1", Title: "First"},
		&findings.Finding{ID: "f2", Title: "Second"},
	)
	svc = NewService(repo, enricher)
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, "Enrichment stopped by user.", st.Message)
	assert.Equal(t, 1, enricher.callCount())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, findings.StatusCompleted, repo.updates["f1"].status)
	_, touched := repo.updates["f2"]
	assert.False(t, touched, "stopped run must not touch the next finding")
}

func TestRun_StopDuringBackoff(t *testing.T) {
	var svc *Service
	enricher := &scriptedEnricher{script: func(int, *findings.Finding) (*ai.Enrichment, error) {
		return nil, ai.ErrRateLimited
	}}
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	svc = NewService(repo, enricher)
	svc.Sleep = func(time.Duration) {
		// first backoff tick: request cancellation
		_ = svc.Stop()
	}

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)

	assert.Equal(t, "Enrichment stopped by user.", st.Message)
	assert.Equal(t, 1, enricher.callCount())

	repo.mu.Lock()
	u := repo.updates["f1"]
	repo.mu.Unlock()
	assert.Equal(t, findings.StatusFailed, u.status)
	assert.Equal(t, "Process stopped by user.", u.errMsg)
	assert.Zero(t, st.WaitSeconds)
}

func TestRun_RestartAfterCompletion(t *testing.T) {
	repo := newFakeFindingRepo(&findings.Finding{ID: "f1", Title: "Reentrancy"})
	svc := NewService(repo, &scriptedEnricher{script: okEnrichment})
	svc.Sleep = func(time.Duration) {}

	require.NoError(t, svc.Start("p1", "key"))
	waitDone(t, svc)

	require.NoError(t, svc.Start("p1", "key"))
	st := waitDone(t, svc)
	assert.Equal(t, "Enrichment complete.", st.Message)
}

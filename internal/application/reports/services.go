package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/projects"
	"github.com/bryanwahyu/automaton-audit/internal/parser"
)

// ErrNoFindings indicates the uploaded report parsed to zero records.
// Nothing is committed in that case.
var ErrNoFindings = errors.New("could not find any valid findings in the report")

// ArtifactStore port for archiving the raw uploaded report
type ArtifactStore interface {
	ArchiveReport(ctx context.Context, key string, content []byte) (string, error)
}

// Service implements the ingest/listing use-cases.
// Safe for concurrent use; all state lives in the repositories.
type Service struct {
	Projects projects.Repository
	Findings findings.Repository
	Archive  ArtifactStore // optional, nil disables archiving
	Clock    application.Clock
}

type IngestResult struct {
	ProjectID string `json:"project_id"`
	Findings  int    `json:"findings"`
}

// Ingest hashes the raw report, rejects byte-identical re-uploads for the
// same project name, parses it, and stores the project with its findings in
// one transaction. Findings start PENDING.
func (s *Service) Ingest(ctx context.Context, name, report string) (*IngestResult, error) {
	sum := sha256.Sum256([]byte(report))
	hash := hex.EncodeToString(sum[:])

	existing, err := s.Projects.FindByNameAndHash(ctx, name, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, projects.ErrDuplicateReport
	}

	records := parser.Parse(report)
	if len(records) == 0 {
		return nil, ErrNoFindings
	}

	p := &projects.Project{
		ID:         projects.ProjectID(uuid.New().String()),
		Name:       name,
		ReportHash: hash,
		CreatedAt:  s.Clock.Now(),
	}
	for i, f := range records {
		f.ID = findings.FindingID(uuid.New().String())
		f.ProjectID = string(p.ID)
		f.Position = i
		f.EnrichmentStatus = findings.StatusPending
	}

	if err := s.Projects.CreateWithFindings(ctx, p, records); err != nil {
		return nil, err
	}

	// best effort: keep the raw evidence around, never fail the ingest
	if s.Archive != nil {
		key := fmt.Sprintf("%s/%s.md", p.ID, hash[:12])
		if _, err := s.Archive.ArchiveReport(ctx, key, []byte(report)); err != nil {
			log.Printf("archive failed for project=%s: %v", p.ID, err)
		}
	}

	return &IngestResult{ProjectID: string(p.ID), Findings: len(records)}, nil
}

// ListProjects returns all ingested projects.
func (s *Service) ListProjects(ctx context.Context) ([]*projects.Project, error) {
	return s.Projects.List(ctx)
}

// GetProject returns one project by id.
func (s *Service) GetProject(ctx context.Context, id projects.ProjectID) (*projects.Project, error) {
	return s.Projects.Get(ctx, id)
}

// ListFindings returns the project's findings filtered by scanner/level and
// ordered by severity rank, then insertion order.
func (s *Service) ListFindings(ctx context.Context, projectID string, f findings.Filter) ([]*findings.Finding, error) {
	list, err := s.Findings.ListByProject(ctx, projectID, f)
	if err != nil {
		return nil, err
	}
	findings.SortBySeverity(list)
	return list, nil
}

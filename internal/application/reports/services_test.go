package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/projects"
)

const sampleReport = `## Aderyn Analysis

## H-1: Centralization Risk

Owner can do anything.

- Found in src/Token.sol [Line: 10]

## L-2: Missing zero address check

Setter lacks validation.
`

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeProjectRepo struct {
	created   *projects.Project
	withFinds []*findings.Finding
	existing  *projects.Project
	projects  []*projects.Project
	createErr error
}

func (r *fakeProjectRepo) CreateWithFindings(ctx context.Context, p *projects.Project, list []*findings.Finding) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = p
	r.withFinds = list
	return nil
}

func (r *fakeProjectRepo) FindByNameAndHash(ctx context.Context, name, hash string) (*projects.Project, error) {
	if r.existing != nil && r.existing.Name == name && r.existing.ReportHash == hash {
		return r.existing, nil
	}
	return nil, nil
}

func (r *fakeProjectRepo) List(ctx context.Context) ([]*projects.Project, error) {
	return r.projects, nil
}

func (r *fakeProjectRepo) Get(ctx context.Context, id projects.ProjectID) (*projects.Project, error) {
	for _, p := range r.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

type fakeFindingRepo struct {
	list []*findings.Finding
}

func (r *fakeFindingRepo) ListByProject(ctx context.Context, projectID string, f findings.Filter) ([]*findings.Finding, error) {
	var out []*findings.Finding
	for _, fd := range r.list {
		if fd.ProjectID != projectID {
			continue
		}
		if f.Scanner != "" && fd.Scanner != f.Scanner {
			continue
		}
		if f.Level != "" && fd.Level != f.Level {
			continue
		}
		out = append(out, fd)
	}
	return out, nil
}

func (r *fakeFindingRepo) ListPending(ctx context.Context, projectID string) ([]*findings.Finding, error) {
	return nil, nil
}

func (r *fakeFindingRepo) UpdateEnrichment(ctx context.Context, id findings.FindingID, status findings.Status, analysis, poc, errMsg string) error {
	return nil
}

func (r *fakeFindingRepo) BulkResetStatus(ctx context.Context, projectID string, from []findings.Status, to findings.Status, onlyLevel findings.Severity) error {
	return nil
}

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) ArchiveReport(ctx context.Context, key string, content []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	return "minio://" + key, nil
}

func newService(pr *fakeProjectRepo, fr *fakeFindingRepo) *Service {
	return &Service{
		Projects: pr,
		Findings: fr,
		Clock:    fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestIngest(t *testing.T) {
	pr := &fakeProjectRepo{}
	svc := newService(pr, &fakeFindingRepo{})

	result, err := svc.Ingest(context.Background(), "vault", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Findings)
	assert.NotEmpty(t, result.ProjectID)

	require.NotNil(t, pr.created)
	assert.Equal(t, "vault", pr.created.Name)
	assert.Len(t, pr.created.ReportHash, 64)
	assert.False(t, pr.created.CreatedAt.IsZero())

	require.Len(t, pr.withFinds, 2)
	for i, f := range pr.withFinds {
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, string(pr.created.ID), f.ProjectID)
		assert.Equal(t, i, f.Position)
		assert.Equal(t, findings.StatusPending, f.EnrichmentStatus)
		assert.Empty(t, f.Analysis)
		assert.Empty(t, f.EnrichmentError)
	}
}

func TestIngest_DuplicateReport(t *testing.T) {
	pr := &fakeProjectRepo{}
	svc := newService(pr, &fakeFindingRepo{})

	first, err := svc.Ingest(context.Background(), "vault", sampleReport)
	require.NoError(t, err)

	pr.existing = pr.created

	_, err = svc.Ingest(context.Background(), "vault", sampleReport)
	assert.ErrorIs(t, err, projects.ErrDuplicateReport)

	// same bytes under a different name is a fresh project
	second, err := svc.Ingest(context.Background(), "vault-v2", sampleReport)
	require.NoError(t, err)
	assert.NotEqual(t, first.ProjectID, second.ProjectID)
}

func TestIngest_NoFindings(t *testing.T) {
	pr := &fakeProjectRepo{}
	svc := newService(pr, &fakeFindingRepo{})

	_, err := svc.Ingest(context.Background(), "vault", "# just a readme\n")
	assert.ErrorIs(t, err, ErrNoFindings)
	assert.Nil(t, pr.created, "nothing should be persisted")
}

func TestIngest_ArchiveFailureIsNotFatal(t *testing.T) {
	pr := &fakeProjectRepo{}
	svc := newService(pr, &fakeFindingRepo{})
	svc.Archive = &fakeArchive{err: errors.New("bucket offline")}

	result, err := svc.Ingest(context.Background(), "vault", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Findings)
}

func TestIngest_ArchivesRawReport(t *testing.T) {
	pr := &fakeProjectRepo{}
	svc := newService(pr, &fakeFindingRepo{})
	archive := &fakeArchive{}
	svc.Archive = archive

	_, err := svc.Ingest(context.Background(), "vault", sampleReport)
	require.NoError(t, err)
	require.Len(t, archive.keys, 1)
	assert.Contains(t, archive.keys[0], string(pr.created.ID))
}

func TestListFindings_SortedBySeverity(t *testing.T) {
	fr := &fakeFindingRepo{list: []*findings.Finding{
		{ID: "a", ProjectID: "p1", Position: 0, Level: findings.SeverityLow},
		{ID: "b", ProjectID: "p1", Position: 1, Level: findings.SeverityCritical},
		{ID: "c", ProjectID: "p1", Position: 2, Level: findings.SeverityInfo},
		{ID: "d", ProjectID: "p1", Position: 3, Level: findings.SeverityHigh},
		{ID: "e", ProjectID: "p1", Position: 4, Level: findings.SeverityMedium},
		{ID: "z", ProjectID: "other", Position: 0, Level: findings.SeverityCritical},
	}}
	svc := newService(&fakeProjectRepo{}, fr)

	list, err := svc.ListFindings(context.Background(), "p1", findings.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 5)

	var order []findings.FindingID
	for _, f := range list {
		order = append(order, f.ID)
	}
	assert.Equal(t, []findings.FindingID{"b", "d", "e", "a", "c"}, order)
}

func TestListFindings_Filtered(t *testing.T) {
	fr := &fakeFindingRepo{list: []*findings.Finding{
		{ID: "a", ProjectID: "p1", Scanner: findings.ScannerSlither, Level: findings.SeverityHigh},
		{ID: "b", ProjectID: "p1", Scanner: findings.ScannerAderyn, Level: findings.SeverityHigh},
		{ID: "c", ProjectID: "p1", Scanner: findings.ScannerSlither, Level: findings.SeverityLow},
	}}
	svc := newService(&fakeProjectRepo{}, fr)

	list, err := svc.ListFindings(context.Background(), "p1", findings.Filter{
		Scanner: findings.ScannerSlither,
		Level:   findings.SeverityHigh,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, findings.FindingID("a"), list[0].ID)
}

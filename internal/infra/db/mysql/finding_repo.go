package mysql

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

type FindingRepository struct {
	db *sql.DB
}

func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `
id, project_id, position, scanner, title, level, description, location,
analysis, poc, enrichment_status, enrichment_error`

// ListByProject returns findings in insertion order, optionally filtered by
// scanner and level. Severity ordering is applied by the caller.
func (r *FindingRepository) ListByProject(ctx context.Context, projectID string, f findings.Filter) ([]*findings.Finding, error) {
	q := `SELECT` + findingColumns + ` FROM findings WHERE project_id=?`
	args := []any{projectID}
	if f.Scanner != "" {
		q += ` AND scanner=?`
		args = append(args, string(f.Scanner))
	}
	if f.Level != "" {
		q += ` AND level=?`
		args = append(args, string(f.Level))
	}
	q += ` ORDER BY position;`

	return r.query(ctx, q, args...)
}

func (r *FindingRepository) ListPending(ctx context.Context, projectID string) ([]*findings.Finding, error) {
	q := `SELECT` + findingColumns + `
FROM findings
WHERE project_id=? AND enrichment_status=?
ORDER BY position;`
	return r.query(ctx, q, projectID, string(findings.StatusPending))
}

// UpdateEnrichment writes the whole outcome in one statement so readers
// never see a partially updated row.
func (r *FindingRepository) UpdateEnrichment(ctx context.Context, id findings.FindingID, status findings.Status, analysis, poc, errMsg string) error {
	const q = `
UPDATE findings
SET analysis=?, poc=?, enrichment_status=?, enrichment_error=?
WHERE id=?;
`
	_, err := r.db.ExecContext(ctx, q, analysis, poc, string(status), errMsg, id)
	return err
}

// BulkResetStatus moves every matching finding in a single statement. Result
// and error columns are cleared on the way back to PENDING; SKIPPED rows
// carry neither result nor error.
func (r *FindingRepository) BulkResetStatus(ctx context.Context, projectID string, from []findings.Status, to findings.Status, onlyLevel findings.Severity) error {
	if len(from) == 0 {
		return nil
	}
	in, args := statusArgs(from)

	q := `UPDATE findings SET enrichment_status=?, analysis='', poc='', enrichment_error='' WHERE project_id=? AND enrichment_status IN (` + in + `)`
	all := append([]any{string(to), projectID}, args...)
	if onlyLevel != "" {
		q += ` AND level=?`
		all = append(all, string(onlyLevel))
	}
	q += `;`

	_, err := r.db.ExecContext(ctx, q, all...)
	return err
}

func (r *FindingRepository) query(ctx context.Context, q string, args ...any) ([]*findings.Finding, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*findings.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFinding(rows *sql.Rows) (*findings.Finding, error) {
	var f findings.Finding
	var description, location, analysis, poc, enrichErr sql.NullString
	if err := rows.Scan(
		&f.ID, &f.ProjectID, &f.Position, &f.Scanner, &f.Title, &f.Level,
		&description, &location, &analysis, &poc, &f.EnrichmentStatus, &enrichErr,
	); err != nil {
		return nil, err
	}
	f.Description = description.String
	f.Location = location.String
	f.Analysis = analysis.String
	f.ProofOfConcept = poc.String
	f.EnrichmentError = enrichErr.String
	return &f, nil
}

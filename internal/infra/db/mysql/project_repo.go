package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/projects"
)

const mysqlErrDuplicateEntry = 1062

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateWithFindings inserts the project and its findings in one transaction.
func (r *ProjectRepository) CreateWithFindings(ctx context.Context, p *projects.Project, list []*findings.Finding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const insertProject = `
INSERT INTO projects (id, name, report_hash, created_at)
VALUES (?,?,?,?);
`
	if _, err := tx.ExecContext(ctx, insertProject, p.ID, p.Name, p.ReportHash, createdAt); err != nil {
		return translateDuplicate(err)
	}

	const insertFinding = `
INSERT INTO findings
 (id, project_id, position, scanner, title, level, description, location,
  analysis, poc, enrichment_status, enrichment_error)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	for _, f := range list {
		if _, err := tx.ExecContext(ctx, insertFinding,
			f.ID, f.ProjectID, f.Position, f.Scanner, f.Title, f.Level,
			f.Description, f.Location,
			f.Analysis, f.ProofOfConcept, f.EnrichmentStatus, f.EnrichmentError,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindByNameAndHash returns (nil, nil) when no matching project exists.
func (r *ProjectRepository) FindByNameAndHash(ctx context.Context, name, hash string) (*projects.Project, error) {
	const q = `
SELECT id, name, report_hash, created_at
FROM projects
WHERE name=? AND report_hash=? LIMIT 1;
`
	var p projects.Project
	err := r.db.QueryRowContext(ctx, q, name, hash).Scan(&p.ID, &p.Name, &p.ReportHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id projects.ProjectID) (*projects.Project, error) {
	const q = `
SELECT id, name, report_hash, created_at
FROM projects
WHERE id=? LIMIT 1;
`
	var p projects.Project
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.ReportHash, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]*projects.Project, error) {
	const q = `
SELECT id, name, report_hash, created_at
FROM projects
ORDER BY name;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*projects.Project
	for rows.Next() {
		var p projects.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ReportHash, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func translateDuplicate(err error) error {
	var me *gomysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
		return projects.ErrDuplicateReport
	}
	return err
}

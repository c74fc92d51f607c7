package projects

import (
	"context"
	"errors"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// ErrDuplicateReport indicates the same (name, report hash) pair was already
// ingested. A byte-identical re-upload is rejected, not duplicated.
var ErrDuplicateReport = errors.New("report already uploaded for this project")

// Repository port
type Repository interface {
	// CreateWithFindings persists the project and its findings in one
	// transaction; no partial project is left committed on failure.
	CreateWithFindings(ctx context.Context, p *Project, list []*findings.Finding) error

	// FindByNameAndHash returns (nil, nil) when no such project exists.
	FindByNameAndHash(ctx context.Context, name, hash string) (*Project, error)

	List(ctx context.Context) ([]*Project, error)
	Get(ctx context.Context, id ProjectID) (*Project, error)
}

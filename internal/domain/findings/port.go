package findings

import "context"

// Filter narrows ListByProject; zero values mean "no filter"
type Filter struct {
	Scanner Scanner
	Level   Severity
}

// Repository port (interface untuk persistence)
type Repository interface {
	ListByProject(ctx context.Context, projectID string, f Filter) ([]*Finding, error)
	ListPending(ctx context.Context, projectID string) ([]*Finding, error)

	// UpdateEnrichment writes status, result pair and error in one statement
	// so readers never observe a partial update.
	UpdateEnrichment(ctx context.Context, id FindingID, status Status, analysis, poc, errMsg string) error

	// BulkResetStatus moves every finding of the project whose status is in
	// `from` to `to` as a single statement. When onlyLevel is non-empty the
	// transition is restricted to that severity.
	BulkResetStatus(ctx context.Context, projectID string, from []Status, to Status, onlyLevel Severity) error
}

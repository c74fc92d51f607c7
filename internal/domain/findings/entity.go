package findings

// FindingID tipe untuk Finding
type FindingID string

// Scanner enum: source format of a finding
type Scanner string

const (
	ScannerSlither Scanner = "Slither"
	ScannerAderyn  Scanner = "Aderyn"
	ScannerWake    Scanner = "Wake"
)

// Severity enum, CRITICAL sorts first
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRanks drives the dashboard sort order
var severityRanks = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of a severity; unknown levels sort last.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return len(severityRanks)
}

// Valid reports whether s is one of the five known levels.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Status enum: enrichment state machine per finding.
// PENDING -> COMPLETED | FAILED | SKIPPED. FAILED is requeued to PENDING
// at the start of the next run; COMPLETED and SKIPPED are never revisited.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Aggregate: Finding
type Finding struct {
	ID               FindingID `json:"id"`
	ProjectID        string    `json:"project_id"`
	Position         int       `json:"position"`
	Scanner          Scanner   `json:"scanner"`
	Title            string    `json:"title"`
	Level            Severity  `json:"level"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Analysis         string    `json:"analysis,omitempty"`
	ProofOfConcept   string    `json:"poc,omitempty"`
	EnrichmentStatus Status    `json:"enrichment_status"`
	EnrichmentError  string    `json:"enrichment_error,omitempty"`
}

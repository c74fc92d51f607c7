package projects

import "time"

// ProjectID tipe untuk Project
type ProjectID string

// Aggregate Root: Project, one uploaded report and its findings.
// Never mutated after creation.
type Project struct {
	ID         ProjectID `json:"id"`
	Name       string    `json:"name"`
	ReportHash string    `json:"report_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

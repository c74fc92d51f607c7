package ai

import (
	"context"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// Enrichment is the analysis payload returned by the AI collaborator.
type Enrichment struct {
	Analysis       string `json:"analysis"`
	ProofOfConcept string `json:"poc"`
}

// Enricher port. The API key is supplied per call because callers provide
// their own credentials at run start.
type Enricher interface {
	Enrich(ctx context.Context, apiKey string, f *findings.Finding) (*Enrichment, error)

	// Ping performs a minimal request to verify the key is usable.
	Ping(ctx context.Context, apiKey string) error
}

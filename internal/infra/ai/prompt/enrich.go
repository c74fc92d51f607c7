package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior smart contract security auditor. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object with exactly two keys: "exploit_details" and "forge_test".
- "exploit_details": a clear, concise explanation of the vulnerability and how it could be exploited. Include links to 1-2 relevant articles (e.g., SWC registry, Ethernaut, security blogs).
- "forge_test": a sample forge test in Solidity. The test must be a complete, runnable function inside a contract inheriting from Test, demonstrating a proof-of-concept for the vulnerability. If a specific PoC is not possible, provide a template test showing how one would check for this class of issue.

Schema (example with empty values):
{
  "exploit_details": "<string>",
  "forge_test": "<string>"
}`
}

// GetUserPrompt builds the per-finding user message.
func GetUserPrompt(f *findings.Finding) string {
	return fmt.Sprintf(`Analyze the following smart contract security finding and respond with the JSON per schema.
Finding Details:
- Title: %s
- Description: %s
- Location: %s
- Severity: %s`, f.Title, f.Description, f.Location, f.Level)
}

type enrichmentPayload struct {
	ExploitDetails string `json:"exploit_details"`
	ForgeTest      string `json:"forge_test"`
}

// ParseEnrichment decodes the model's JSON reply. Code fences are tolerated
// because models add them despite instructions.
func ParseEnrichment(raw string) (*ai.Enrichment, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var p enrichmentPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, fmt.Errorf("failed to decode enrichment response: %w", err)
	}
	if p.ExploitDetails == "" && p.ForgeTest == "" {
		return nil, fmt.Errorf("enrichment response carried no analysis")
	}
	return &ai.Enrichment{Analysis: p.ExploitDetails, ProofOfConcept: p.ForgeTest}, nil
}

package parser

import (
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

const slitherBlockDelimiter = "INFO:Detectors:"

var (
	// "description (location)" with the location as the last parenthesized
	// group on the line.
	slitherLineRe = regexp.MustCompile(`^(.+)\((.*?)\)\s*$`)
	slitherRefRe  = regexp.MustCompile(`Reference: https://[^\s#]*#(\S+)`)
)

// severityRule maps detector-name substrings to a level, first match wins.
// The table mirrors the upstream dashboards' heuristic; keep it in sync with
// them rather than improving it, they sort on the result.
type severityRule struct {
	substrings []string
	level      findings.Severity
}

var slitherSeverityRules = []severityRule{
	{[]string{"reentrancy", "uninitialized"}, findings.SeverityCritical},
	{[]string{"arbitrary-from", "calls-inside-a-loop"}, findings.SeverityHigh},
	{[]string{"dangerous-strict", "divide-before-multiply", "unchecked-transfer"}, findings.SeverityMedium},
}

func classifyDetector(detector string) findings.Severity {
	d := strings.ToLower(detector)
	for _, rule := range slitherSeverityRules {
		for _, sub := range rule.substrings {
			if strings.Contains(d, sub) {
				return rule.level
			}
		}
	}
	return findings.SeverityLow
}

// parseSlither handles the line-oriented diagnostic blocks Slither prints.
// Each block starts at an "INFO:Detectors:" delimiter; its first non-blank
// line carries "description (location)" and a trailing reference line names
// the detector.
func parseSlither(section string) []*findings.Finding {
	var out []*findings.Finding

	blocks := strings.Split(section, slitherBlockDelimiter)
	if len(blocks) < 2 {
		return nil
	}
	for _, block := range blocks[1:] {
		first := firstNonBlankLine(block)
		if first == "" {
			continue
		}
		description, location := splitDescriptionLocation(first)

		detector := "Unknown Issue"
		if m := slitherRefRe.FindStringSubmatch(block); m != nil {
			detector = m[1]
		}

		out = append(out, &findings.Finding{
			Scanner:     findings.ScannerSlither,
			Title:       titleize(detector),
			Level:       classifyDetector(detector),
			Description: description,
			Location:    location,
		})
	}
	return out
}

func firstNonBlankLine(block string) string {
	for _, line := range strings.Split(block, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitDescriptionLocation(line string) (string, string) {
	m := slitherLineRe.FindStringSubmatch(line)
	if m == nil {
		return line, "N/A"
	}
	description := strings.TrimSpace(m[1])
	location := strings.TrimSpace(m[2])
	if location == "" {
		location = "N/A"
	}
	return description, location
}

package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

var (
	// Wake draws each finding as a box panel. The top border embeds the
	// severity tag set and the issue-type tag, the bottom border carries the
	// location.
	wakePanelRe = regexp.MustCompile(`(?s)╭─\s*\[(.*?)\].*?\[(.*?)\].*?─╮\n(.*?)\n╰─\s*(.*?)\s*─+`)
	wakeDescRe  = regexp.MustCompile(`│\s*❱\s*\d+\s*(.*)`)
)

// wakeSeverityOrder is a priority scan: the highest tag present wins.
var wakeSeverityOrder = []findings.Severity{
	findings.SeverityCritical,
	findings.SeverityHigh,
	findings.SeverityMedium,
	findings.SeverityLow,
}

func parseWake(section string) []*findings.Finding {
	var out []*findings.Finding

	for _, m := range wakePanelRe.FindAllStringSubmatch(section, -1) {
		tags, issueType, body, location := m[1], m[2], m[3], m[4]

		level := findings.SeverityInfo
		for _, s := range wakeSeverityOrder {
			if strings.Contains(tags, string(s)) {
				level = s
				break
			}
		}

		description := fmt.Sprintf("Wake detector '%s' triggered.", issueType)
		if dm := wakeDescRe.FindStringSubmatch(body); dm != nil {
			description = strings.TrimSpace(dm[1])
		}

		out = append(out, &findings.Finding{
			Scanner:     findings.ScannerWake,
			Title:       titleize(issueType),
			Level:       level,
			Description: description,
			Location:    strings.TrimSpace(location),
		})
	}
	return out
}

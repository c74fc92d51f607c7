package parser

import (
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

var (
	// "## H-1: Centralization Risk" / "## L-3: Missing checks"
	aderynHeadingRe  = regexp.MustCompile(`(?m)^##\s*([HL])-\d+:\s*(.*)$`)
	aderynLocationRe = regexp.MustCompile(`- Found in (.*?)\s*\[Line: \d+\]`)
)

// parseAderyn handles Aderyn's markdown issue listing. Every "## H-n:" or
// "## L-n:" heading opens a block running to the next heading or the end of
// the section. Only H and L appear in this format.
func parseAderyn(section string) []*findings.Finding {
	var out []*findings.Finding

	headings := aderynHeadingRe.FindAllStringSubmatchIndex(section, -1)
	for i, h := range headings {
		letter := section[h[2]:h[3]]
		title := strings.TrimSpace(section[h[4]:h[5]])

		end := len(section)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		body := strings.TrimSpace(section[h[1]:end])

		level := findings.SeverityLow
		if letter == "H" {
			level = findings.SeverityHigh
		}

		location := "N/A"
		if m := aderynLocationRe.FindStringSubmatch(body); m != nil {
			location = strings.TrimSpace(m[1])
		}

		out = append(out, &findings.Finding{
			Scanner:     findings.ScannerAderyn,
			Title:       title,
			Level:       level,
			Description: firstParagraph(body),
			Location:    location,
		})
	}
	return out
}

// firstParagraph returns the block's first paragraph with embedded newlines
// collapsed to spaces.
func firstParagraph(body string) string {
	para := body
	if i := strings.Index(body, "\n\n"); i >= 0 {
		para = body[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
}

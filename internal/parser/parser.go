// Package parser normalizes combined scanner reports into finding records.
// A report is one markdown document with zero or more "## <Scanner> Analysis"
// sections; each section is handed to its scanner-specific sub-parser and the
// results are concatenated in document order.
//
// Parsing is pure and never fails: unknown sections and malformed blocks
// simply contribute no records.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

var sectionRe = regexp.MustCompile(`(?m)^##\s*(\w+)\s+Analysis\s*$`)

type sectionParser func(section string) []*findings.Finding

var sectionParsers = map[string]sectionParser{
	"Slither": parseSlither,
	"Aderyn":  parseAderyn,
	"Wake":    parseWake,
}

// Parse returns unpersisted finding records in document order.
func Parse(report string) []*findings.Finding {
	var out []*findings.Finding

	headers := sectionRe.FindAllStringSubmatchIndex(report, -1)
	for i, h := range headers {
		name := report[h[2]:h[3]]
		sub, ok := sectionParsers[name]
		if !ok {
			continue
		}
		end := len(report)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		out = append(out, sub(report[h[1]:end])...)
	}
	return out
}

// titleize turns a detector slug into a display title:
// "reentrancy-eth" -> "Reentrancy Eth".
func titleize(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

package mysql

import (
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// statusArgs expands a status set into a "?,?" placeholder list plus its
// argument slice, for IN clauses.
func statusArgs(statuses []findings.Status) (string, []any) {
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = string(s)
	}
	return strings.Join(placeholders, ","), args
}

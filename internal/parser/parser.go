// Package parser extracts the compliance reason and SQL statement from
// free-form translator output.
package parser

import (
	"strings"
	"unicode"

	"compliance-agent/internal/models"
)

const (
	ReasonMarker = "REASON:"
	SQLMarker    = "SQL:"

	// DefaultReason is used when the translator output cannot be parsed
	DefaultReason = "Policy Violation Flagged"
)

// DefaultSQL never matches a row
var DefaultSQL = "SELECT * FROM " + models.TransactionsTable + " WHERE 1=0;"

// Outcome tells whether the output was parsed or fell back to defaults
type Outcome int

const (
	Defaulted Outcome = iota
	Parsed
)

func (o Outcome) String() string {
	if o == Parsed {
		return "parsed"
	}
	return "defaulted"
}

// Result is the reason/SQL pair extracted from translator output
type Result struct {
	Reason  string
	SQL     string
	Outcome Outcome
}

// Parse never fails: output missing either marker yields the default reason
// and a query that selects nothing.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if !strings.Contains(text, ReasonMarker) || !strings.Contains(text, SQLMarker) {
		return Result{Reason: DefaultReason, SQL: DefaultSQL, Outcome: Defaulted}
	}

	head, tail, _ := strings.Cut(text, SQLMarker)

	reason := strings.TrimSpace(strings.ReplaceAll(head, ReasonMarker, ""))

	return Result{
		Reason:  reason,
		SQL:     cleanSQL(tail),
		Outcome: Parsed,
	}
}

// fenceLanguages are info strings dropped when they share a line with the query
var fenceLanguages = map[string]bool{
	"sql":        true,
	"sqlite":     true,
	"sqlite3":    true,
	"postgres":   true,
	"postgresql": true,
	"pgsql":      true,
	"psql":       true,
}

// cleanSQL strips code fences and keeps only the first statement
func cleanSQL(s string) string {
	var kept []string
	seen := false
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		cleaned := stripFence(line)
		// a bare fence after the query closes the block
		if cleaned == "" && seen && isFence(line) {
			break
		}
		seen = seen || strings.TrimSpace(cleaned) != ""
		kept = append(kept, cleaned)
	}

	stmt, _, _ := strings.Cut(strings.Join(kept, "\n"), ";")
	return strings.TrimSpace(stmt) + ";"
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// stripFence removes ``` and ~~~ fences from one line. An opening fence
// takes its info string with it, whatever the language tag says.
func stripFence(line string) string {
	trimmed := strings.TrimSpace(line)
	if isFence(trimmed) {
		rest := strings.TrimLeft(trimmed, "`~")
		i := strings.IndexFunc(rest, unicode.IsSpace)
		switch {
		case i < 0:
			// bare info string such as "sqlite" or "Sql"
			trimmed = ""
		case fenceLanguages[strings.ToLower(rest[:i])]:
			trimmed = rest[i:]
		default:
			trimmed = rest
		}
	}

	trimmed = strings.ReplaceAll(trimmed, "```", "")
	return strings.ReplaceAll(trimmed, "~~~", "")
}

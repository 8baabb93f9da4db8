// Package validation interprets candidate records against compiled rule
// documents and produces ordered, human-actionable diagnostics. Issues are
// the normal, successful output of validation — a record failing every rule
// still returns a result, never an error.
package validation

import "github.com/emsgrid/emsgrid/internal/domain/ruledoc"

// Issue is one diagnostic produced by a validation pass.
type Issue struct {
	Severity     ruledoc.Severity `json:"severity"`
	Stage        string           `json:"stage"`
	RuleID       string           `json:"rule_id"`
	FieldPath    string           `json:"field_path,omitempty"`
	Section      string           `json:"section,omitempty"`
	FieldLabel   string           `json:"field_label,omitempty"`
	Message      string           `json:"message"`
	TechMessage  string           `json:"tech_message,omitempty"`
	RuleSource   string           `json:"rule_source,omitempty"`
	SuggestedFix string           `json:"suggested_fix,omitempty"`
}

// IsError reports whether the issue is error severity.
func (i Issue) IsError() bool { return i.Severity == ruledoc.SeverityError }

// Result is the outcome of one validation call.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// add appends an issue and downgrades Valid on errors.
func (r *Result) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	if issue.IsError() {
		r.Valid = false
	}
}

// ErrorCount returns the number of error-severity issues.
func (r *Result) ErrorCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.IsError() {
			n++
		}
	}
	return n
}

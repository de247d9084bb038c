// Package rule models scanning rules: the formula tree that composes leaf
// patterns with boolean operators and metavariable filters, the leaf
// patterns themselves, and the YAML rule-file format they are read from.
package rule

import (
	"github.com/andersk/semgrep/internal/types"
)

// Rule is one complete scanning rule: identity and reporting metadata plus
// the formula to evaluate. Patterns holds every leaf pattern referenced
// anywhere in the rule, including leaves of nested metavariable-pattern
// conditions; pattern ids are unique across the whole rule.
type Rule struct {
	ID        string
	Message   string
	Severity  types.Severity
	Languages []types.Language
	Metadata  map[string]string

	Formula  Formula
	Patterns map[types.PatternID]*Pattern
}

// Pattern returns the pattern definition for a leaf id, or nil when the id
// is unknown (which indicates a malformed formula).
func (r *Rule) Pattern(id types.PatternID) *Pattern {
	return r.Patterns[id]
}

// AppliesTo reports whether the rule targets the given language. Rules for
// the generic language apply to any file since they only carry textual
// patterns.
func (r *Rule) AppliesTo(lang types.Language) bool {
	for _, l := range r.Languages {
		if l == lang || l == types.LangGeneric {
			return true
		}
	}
	return false
}

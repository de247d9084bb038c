package errors

import (
	"fmt"
	"strings"

	"github.com/andersk/semgrep/internal/types"
)

// Error kinds for the rule evaluation pipeline
type Kind string

const (
	// Rule-file problems
	KindRuleParse Kind = "rule_parse"

	// Malformed formulas discovered at evaluation time (bare NOT, AND
	// with no positive terms). Fatal for that rule/file pair.
	KindConfig Kind = "config"

	// External matcher failures (pattern parse errors, skipped tokens)
	KindMatching Kind = "matching"

	// Errors collected while evaluating a nested metavariable-pattern
	// formula; never abort the enclosing evaluation.
	KindNested Kind = "nested"

	// Per-rule-per-file evaluation exceeded its wall-clock budget
	KindTimeout Kind = "timeout"

	// Target-file problems (unreadable, unparseable)
	KindFile Kind = "file"
)

// RuleError is an error stamped with the rule and location it concerns.
// Every error surfaced by evaluation is one of these; the kind decides
// whether it aborted the rule (config, timeout) or was collected and
// evaluation continued.
type RuleError struct {
	Kind       Kind
	RuleID     string
	Path       string
	Span       *types.Span
	Underlying error
}

// New creates a rule error of the given kind.
func New(kind Kind, err error) *RuleError {
	return &RuleError{Kind: kind, Underlying: err}
}

// Newf creates a rule error from a format string.
func Newf(kind Kind, format string, args ...interface{}) *RuleError {
	return &RuleError{Kind: kind, Underlying: fmt.Errorf(format, args...)}
}

// WithRule stamps the error with the rule id.
func (e *RuleError) WithRule(ruleID string) *RuleError {
	e.RuleID = ruleID
	return e
}

// WithPath stamps the error with the target file path.
func (e *RuleError) WithPath(path string) *RuleError {
	e.Path = path
	return e
}

// WithSpan stamps the error with a source location.
func (e *RuleError) WithSpan(span types.Span) *RuleError {
	e.Span = &span
	return e
}

// Fatal reports whether this error aborted evaluation of its rule for its
// file, as opposed to being collected alongside results.
func (e *RuleError) Fatal() bool {
	return e.Kind == KindConfig || e.Kind == KindTimeout
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.RuleID != "" {
		fmt.Fprintf(&b, " [%s]", e.RuleID)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
		if e.Span != nil {
			fmt.Fprintf(&b, ":%d-%d", e.Span.Start, e.Span.End)
		}
	}
	fmt.Fprintf(&b, ": %v", e.Underlying)
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *RuleError) Unwrap() error {
	return e.Underlying
}

// ErrorSet accumulates rule errors during one rule/file evaluation. It is
// append-only: branches of the evaluation add to it and nothing removes
// from it, so one misbehaving nested formula cannot erase another
// branch's diagnostics. Not safe for concurrent use; one evaluation is
// single-threaded by design.
type ErrorSet struct {
	errs []*RuleError
}

// Add appends an error to the set. Nil errors are ignored.
func (s *ErrorSet) Add(err *RuleError) {
	if err != nil {
		s.errs = append(s.errs, err)
	}
}

// AddAll appends every error from another set.
func (s *ErrorSet) AddAll(other *ErrorSet) {
	if other != nil {
		s.errs = append(s.errs, other.errs...)
	}
}

// Errors returns the accumulated errors in insertion order.
func (s *ErrorSet) Errors() []*RuleError {
	return s.errs
}

// Len returns the number of accumulated errors.
func (s *ErrorSet) Len() int {
	return len(s.errs)
}

// MultiError bundles several errors into one.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a multi-error, dropping nil entries. Returns nil
// when nothing remains.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface.
func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all bundled errors.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

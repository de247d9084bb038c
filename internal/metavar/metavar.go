// Package metavar holds the binding environments produced by pattern
// matching: the mapping from metavariable names ($X, $FUNC, ...) to the
// source fragments they were bound to.
package metavar

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/andersk/semgrep/internal/types"
)

// namePattern is the accepted shape of a metavariable name.
var namePattern = regexp.MustCompile(`^\$([A-Z_][A-Z0-9_]*|\d+)$`)

// IsName reports whether text is a metavariable name like $X or $_FOO.
func IsName(text string) bool {
	return namePattern.MatchString(text)
}

// Token is one source token covered by a bound fragment, kept for
// provenance in findings output.
type Token struct {
	Text string     `json:"text"`
	Span types.Span `json:"span"`
}

// Value is the fragment a metavariable is bound to: its raw source text,
// its span within the matched file, the tokens it covers, and, when the
// fragment is a literal, its constant value.
type Value struct {
	Text   string         `json:"text"`
	Span   types.Span     `json:"span"`
	Tokens []Token        `json:"tokens,omitempty"`
	Lang   types.Language `json:"-"`

	// Const holds the constant-propagated literal value, without quotes
	// for strings. HasConst distinguishes "constant empty string" from
	// "not a constant".
	Const    string `json:"const,omitempty"`
	HasConst bool   `json:"-"`
}

// NewValue builds a Value for a plain fragment and derives its constant
// value when the fragment is a recognizable literal.
func NewValue(text string, span types.Span, lang types.Language) Value {
	v := Value{Text: text, Span: span, Lang: lang}
	if c, ok := literalValue(text); ok {
		v.Const = c
		v.HasConst = true
	}
	if len(v.Tokens) == 0 {
		v.Tokens = []Token{{Text: text, Span: span}}
	}
	return v
}

// StringValue returns the literal string form used by regex and analysis
// conditions: the constant-propagated value when constant propagation is
// enabled and the fragment is constant, the raw source text otherwise.
func (v Value) StringValue(constProp bool) string {
	if constProp && v.HasConst {
		return v.Const
	}
	return v.Text
}

// Equal reports whether two bound values are interchangeable for the
// same-variable-same-value rule. Constants compare by constant value so
// that `"x"` and `'x'` style spellings unify; everything else compares by
// source text.
func (v Value) Equal(o Value) bool {
	if v.HasConst && o.HasConst {
		return v.Const == o.Const
	}
	return v.Text == o.Text
}

// literalValue recognizes string, rune, integer and float literals and
// returns their unquoted value. This intentionally covers only fragments
// that are a single literal token; expressions are not folded.
func literalValue(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if len(s) == 0 {
		return "", false
	}
	switch s[0] {
	case '"', '\'', '`':
		if len(s) >= 2 && s[len(s)-1] == s[0] {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq, true
			}
			// Single-quoted strings from non-Go languages.
			return s[1 : len(s)-1], true
		}
		return "", false
	}
	if _, err := strconv.ParseInt(s, 0, 64); err == nil {
		return s, true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s, true
	}
	return "", false
}

// Bindings maps metavariable names to bound values. Insertion order is
// irrelevant; two environments are equal when they hold the same names
// bound to equal values.
type Bindings map[string]Value

// Clone returns an independent copy. Values are immutable, so a shallow
// copy of the map suffices.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return nil
	}
	out := make(Bindings, len(b))
	for name, v := range b {
		out[name] = v
	}
	return out
}

// Names returns the bound metavariable names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a metavariable name, accepting both "$X" and "X".
func (b Bindings) Lookup(name string) (Value, bool) {
	if v, ok := b[name]; ok {
		return v, true
	}
	v, ok := b["$"+name]
	return v, ok
}

// Merge combines two environments. Any variable present in both must bind
// an equal value; otherwise the merge fails and ok is false. This is the
// primitive that makes AND enforce the same-variable-same-value rule
// across conjuncts. Neither input is modified.
func Merge(a, b Bindings) (Bindings, bool) {
	if len(a) == 0 {
		return b.Clone(), true
	}
	if len(b) == 0 {
		return a.Clone(), true
	}
	out := a.Clone()
	for name, v := range b {
		if existing, ok := out[name]; ok {
			if !existing.Equal(v) {
				return nil, false
			}
			continue
		}
		out[name] = v
	}
	return out, true
}

// Equal reports whether two environments bind exactly the same names to
// equal values.
func (b Bindings) Equal(o Bindings) bool {
	if len(b) != len(o) {
		return false
	}
	for name, v := range b {
		ov, ok := o[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Interpolate substitutes $NAME references in a message template with the
// bound fragment text. Unbound references are left untouched.
func (b Bindings) Interpolate(template string) string {
	if len(b) == 0 || !strings.ContainsRune(template, '$') {
		return template
	}
	// Longest names first so $FOO2 is not clobbered by $FOO.
	names := b.Names()
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	out := template
	for _, name := range names {
		out = strings.ReplaceAll(out, name, b[name].Text)
	}
	return out
}

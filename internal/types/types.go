package types

import "fmt"

// Language identifies a source language for parsing and pattern matching.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangCpp        Language = "cpp"
	LangC          Language = "c"
	LangRust       Language = "rust"
	LangPHP        Language = "php"
	LangZig        Language = "zig"

	// LangGeneric is used for rules that only contain textual patterns
	// (pattern-regex); no AST is ever built for it.
	LangGeneric Language = "generic"
)

// SupportedLanguages lists every language the engine can parse, in the
// order they are reported by diagnostics.
var SupportedLanguages = []Language{
	LangGo, LangPython, LangJavaScript, LangTypeScript, LangJava,
	LangCSharp, LangCpp, LangC, LangRust, LangPHP, LangZig, LangGeneric,
}

// languageAliases maps the alternate spellings accepted in rule files to
// canonical language names.
var languageAliases = map[string]Language{
	"go":         LangGo,
	"golang":     LangGo,
	"python":     LangPython,
	"py":         LangPython,
	"javascript": LangJavaScript,
	"js":         LangJavaScript,
	"typescript": LangTypeScript,
	"ts":         LangTypeScript,
	"java":       LangJava,
	"csharp":     LangCSharp,
	"c#":         LangCSharp,
	"cs":         LangCSharp,
	"cpp":        LangCpp,
	"c++":        LangCpp,
	"c":          LangC,
	"rust":       LangRust,
	"rs":         LangRust,
	"php":        LangPHP,
	"zig":        LangZig,
	"generic":    LangGeneric,
	"regex":      LangGeneric,
}

// ParseLanguage resolves a language name from a rule file to a canonical
// Language. The boolean is false when the name is unknown.
func ParseLanguage(name string) (Language, bool) {
	lang, ok := languageAliases[name]
	return lang, ok
}

// LanguageNames returns every accepted language spelling. Used to build
// "did you mean" suggestions for unknown names.
func LanguageNames() []string {
	names := make([]string, 0, len(languageAliases))
	for name := range languageAliases {
		names = append(names, name)
	}
	return names
}

// PatternID identifies one leaf pattern within one rule's formula. IDs are
// assigned densely starting at zero while the formula is built and act as
// the join key between raw matches and formula leaves.
type PatternID int

func (id PatternID) String() string {
	return fmt.Sprintf("p%d", int(id))
}

// Point is a zero-based row/column position within a file.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Span is a byte range within one file. Start is inclusive, End exclusive.
// The point fields mirror the byte offsets for human-facing output and take
// no part in containment decisions.
type Span struct {
	Start      int   `json:"start"`
	End        int   `json:"end"`
	StartPoint Point `json:"start_point"`
	EndPoint   Point `json:"end_point"`
}

// NewSpan builds a Span from byte offsets only. Point information stays
// zeroed; tests and fragment targets use this form.
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// ContainedIn reports whether s lies within o's byte range, boundaries
// included. Every span is contained in itself.
func (s Span) ContainedIn(o Span) bool {
	return s.Start >= o.Start && s.End <= o.End
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return o.ContainedIn(s)
}

// SameRange reports byte-offset equality, ignoring point information.
func (s Span) SameRange(o Span) bool {
	return s.Start == o.Start && s.End == o.End
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("[%d-%d)", s.Start, s.End)
}

// Shift returns the span translated by delta bytes. Point information is
// dropped because it cannot be translated without the surrounding text.
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Severity classifies how a rule's findings are reported.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// ParseSeverity resolves a severity name from a rule file; defaults are not
// applied here, unknown names report false.
func ParseSeverity(name string) (Severity, bool) {
	switch name {
	case "ERROR", "error":
		return SeverityError, true
	case "WARNING", "warning":
		return SeverityWarning, true
	case "INFO", "info":
		return SeverityInfo, true
	}
	return "", false
}

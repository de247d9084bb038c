package rule

import "github.com/andersk/semgrep/internal/types"

// Condition is a per-range metavariable filter attached to an And node.
// Conditions apply in declaration order, each narrowing the surviving
// range set; all of them are pure predicates over one range.
type Condition interface {
	conditionNode()
}

// ComparisonCondition keeps a range when a boolean expression over its
// bindings evaluates to true. The expression language is the small
// side-effect-free comparison language of internal/evalexpr; an expression
// that cannot be evaluated drops the range without raising an error.
type ComparisonCondition struct {
	Expr string
}

func (*ComparisonCondition) conditionNode() {}

// RegexCondition keeps a range when the named metavariable's literal
// string form matches the regular expression. The string form is the
// constant-propagated value when constant propagation is enabled and the
// binding is constant, the raw source text otherwise.
type RegexCondition struct {
	Metavar string
	Pattern string
	// Negated inverts the test (metavariable-regex with a
	// pattern-not-regex spelling).
	Negated bool
}

func (*RegexCondition) conditionNode() {}

// PatternCondition keeps a range when a nested formula matches inside the
// named metavariable's bound fragment. Language, when set, re-parses the
// fragment under that language and evaluates the nested formula against
// the re-parsed tree; otherwise the nested formula is evaluated against
// the enclosing file with the evaluation context narrowed to the
// fragment's span.
type PatternCondition struct {
	Metavar  string
	Formula  Formula
	Language types.Language // empty: inherit the target's language
}

func (*PatternCondition) conditionNode() {}

// Analyzer names a built-in string analysis applied by AnalyzerCondition.
type Analyzer string

const (
	// AnalyzerEntropy keeps ranges whose bound string scores above the
	// high-entropy threshold (likely embedded secret).
	AnalyzerEntropy Analyzer = "entropy"
	// AnalyzerReDoS keeps ranges whose bound string, parsed as a regex,
	// contains a sub-pattern vulnerable to catastrophic backtracking.
	AnalyzerReDoS Analyzer = "redos"
)

// AnalyzerCondition keeps a range when the named analyzer flags the
// metavariable's bound string.
type AnalyzerCondition struct {
	Metavar  string
	Analyzer Analyzer
}

func (*AnalyzerCondition) conditionNode() {}

package rule

import "github.com/andersk/semgrep/internal/types"

// Formula is the boolean structure of one rule: a closed sum over Leaf, Or
// and And. Not exists only transiently while a formula is being assembled;
// the builder folds every Not into the negative list of its enclosing And,
// and the evaluator treats a surviving Not as a fatal internal error.
//
// Exhaustive type switches over this set are what keep the evaluator
// honest when new node kinds appear; do not add open-ended implementations
// elsewhere.
type Formula interface {
	formulaNode()
}

// Leaf refers to one leaf pattern's pre-computed raw matches. Inside marks
// leaves that came from pattern-inside / pattern-not-inside operators,
// which changes both their range kind and the order they are folded in
// during AND evaluation.
type Leaf struct {
	ID     types.PatternID
	Inside bool
}

func (*Leaf) formulaNode() {}

// Or is the union of its children's ranges.
type Or struct {
	Children []Formula
}

func (*Or) formulaNode() {}

// And intersects its positive children, subtracts its negative children,
// then filters the survivors through metavariable conditions and focus
// narrowing. Selector, when set, is the single bare positive pattern whose
// underlying search may be pruned to the current candidate set; it is an
// optimization hint only and never changes results.
type And struct {
	Positives  []Formula
	Negatives  []Formula
	Conditions []Condition
	Focus      []string
	Selector   *Leaf
}

func (*And) formulaNode() {}

// Not negates its child. Only legal as a direct member of an And's
// negative list, where the builder stores the child directly; a Not that
// reaches the evaluator is a malformed-formula configuration error.
type Not struct {
	Child Formula
}

func (*Not) formulaNode() {}

// PatternKind distinguishes how a leaf pattern is matched.
type PatternKind int

const (
	// KindAST patterns are parsed in the target language and matched
	// structurally against the file's AST.
	KindAST PatternKind = iota
	// KindRegex patterns are matched textually against the raw file.
	KindRegex
)

// Pattern is one leaf pattern of a rule: its identity within the formula,
// how it is matched, and its source text.
type Pattern struct {
	ID     types.PatternID
	Kind   PatternKind
	Source string
}

// CollectLeaves walks a formula and returns every Leaf in it, in
// left-to-right declaration order, including leaves under negatives and
// the selector. Leaves inside nested metavariable-pattern conditions are
// not included: those are matched lazily against their own targets.
func CollectLeaves(f Formula) []*Leaf {
	var leaves []*Leaf
	var walk func(Formula)
	walk = func(f Formula) {
		switch n := f.(type) {
		case *Leaf:
			leaves = append(leaves, n)
		case *Or:
			for _, c := range n.Children {
				walk(c)
			}
		case *And:
			for _, c := range n.Positives {
				walk(c)
			}
			for _, c := range n.Negatives {
				walk(c)
			}
		case *Not:
			walk(n.Child)
		}
	}
	walk(f)
	return leaves
}

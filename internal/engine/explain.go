package engine

import (
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// Explanation is one node of the evaluation trace tree built when
// Config.Explanations is set: which operator ran, what spans survived it,
// and the explanations of its operands.
type Explanation struct {
	Op       string         `json:"op"`
	Pattern  string         `json:"pattern,omitempty"`
	Spans    []types.Span   `json:"spans"`
	Children []*Explanation `json:"children,omitempty"`
}

func (e *Engine) explainLeaf(pat *rule.Pattern, ranges []Range) *Explanation {
	if !e.cfg.Explanations {
		return nil
	}
	return &Explanation{Op: "pattern", Pattern: pat.Source, Spans: spansOf(ranges)}
}

func (e *Engine) explainOp(op string, ranges []Range, kids []*Explanation) *Explanation {
	if !e.cfg.Explanations {
		return nil
	}
	children := kids[:0:0]
	for _, k := range kids {
		if k != nil {
			children = append(children, k)
		}
	}
	return &Explanation{Op: op, Spans: spansOf(ranges), Children: children}
}

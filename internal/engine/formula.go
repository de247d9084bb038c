package engine

import (
	"context"

	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// evalState threads everything one rule/target evaluation needs through
// the recursive evaluator. contextSpan is set while evaluating a nested
// metavariable-pattern formula against the enclosing file: leaf matches
// outside it do not exist from the nested formula's point of view.
type evalState struct {
	ctx         context.Context
	rule        *rule.Rule
	target      *matcher.Target
	contextSpan *types.Span
	depth       int
	errs        *rerr.ErrorSet
}

func (s *evalState) narrowed(span types.Span) *evalState {
	ns := *s
	ns.contextSpan = &span
	ns.depth = s.depth + 1
	return &ns
}

// evalFormula computes the range set of a formula node. Returned errors
// are fatal for this rule/target pair; recoverable problems go into the
// error set instead.
func (e *Engine) evalFormula(s *evalState, f rule.Formula) ([]Range, *Explanation, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, nil, rerr.New(rerr.KindTimeout, err)
	}

	switch n := f.(type) {
	case *rule.Leaf:
		return e.evalLeaf(s, n)
	case *rule.Or:
		return e.evalOr(s, n)
	case *rule.And:
		return e.evalAnd(s, n)
	case *rule.Not:
		// The parser folds negations into And negatives; one surviving
		// here means the formula tree was built by hand and built wrong.
		return nil, nil, rerr.Newf(rerr.KindConfig, "negation outside a patterns block")
	default:
		return nil, nil, rerr.Newf(rerr.KindConfig, "unknown formula node %T", f)
	}
}

func (e *Engine) evalLeaf(s *evalState, leaf *rule.Leaf) ([]Range, *Explanation, error) {
	pat := s.rule.Pattern(leaf.ID)
	if pat == nil {
		return nil, nil, rerr.Newf(rerr.KindConfig, "formula references unknown pattern id %d", leaf.ID)
	}

	raw, err := e.dispatcher.Match(s.ctx, pat, s.target)
	if err != nil {
		if s.ctx.Err() != nil {
			return nil, nil, rerr.New(rerr.KindTimeout, err)
		}
		// A pattern that cannot be matched (bad regex, unparseable
		// source) contributes no ranges but does not sink the rule.
		s.errs.Add(rerr.New(rerr.KindMatching, err))
		return nil, e.explainLeaf(pat, nil), nil
	}

	kind := RangePlain
	switch {
	case leaf.Inside:
		kind = RangeInside
	case pat.Kind == rule.KindRegex:
		kind = RangeRegexp
	}

	ranges := make([]Range, 0, len(raw))
	for _, m := range raw {
		if s.contextSpan != nil && !m.Span.ContainedIn(*s.contextSpan) {
			continue
		}
		ranges = append(ranges, Range{Span: m.Span, Bindings: m.Bindings, Kind: kind})
	}
	e.trace("leaf %d (%s): %d matches", pat.ID, kind, len(ranges))
	return ranges, e.explainLeaf(pat, ranges), nil
}

func (e *Engine) evalOr(s *evalState, or *rule.Or) ([]Range, *Explanation, error) {
	var lists [][]Range
	var kids []*Explanation
	for _, child := range or.Children {
		ranges, ex, err := e.evalFormula(s, child)
		if err != nil {
			return nil, nil, err
		}
		lists = append(lists, ranges)
		kids = append(kids, ex)
	}
	out := unionRanges(lists...)
	e.trace("or: %d ranges", len(out))
	return out, e.explainOp("or", out, kids), nil
}

func (e *Engine) evalAnd(s *evalState, and *rule.And) ([]Range, *Explanation, error) {
	var kids []*Explanation

	// Evaluate every positive conjunct, then fold plain result lists
	// before inside ones. Folding enclosure context last keeps the
	// surviving spans anchored on the plain matches; reordering this
	// changes which span an intersection reports.
	var plain, inside [][]Range
	for _, child := range and.Positives {
		ranges, ex, err := e.evalFormula(s, child)
		if err != nil {
			return nil, nil, err
		}
		kids = append(kids, ex)
		if len(ranges) > 0 && ranges[0].Kind == RangeInside {
			inside = append(inside, ranges)
		} else {
			plain = append(plain, ranges)
		}
	}

	var current []Range
	switch {
	case len(plain)+len(inside) > 0:
		ordered := append(plain, inside...)
		current = ordered[0]
		for _, next := range ordered[1:] {
			if err := s.ctx.Err(); err != nil {
				return nil, nil, rerr.New(rerr.KindTimeout, err)
			}
			current = intersectRanges(current, next)
		}
	case s.contextSpan != nil:
		// A conditions-only nested formula filters the ambient fragment.
		current = []Range{{Span: *s.contextSpan}}
	default:
		return nil, nil, rerr.Newf(rerr.KindConfig, "patterns block has no positive terms")
	}

	for _, child := range and.Negatives {
		if len(current) == 0 {
			break
		}
		neg, ex, err := e.evalFormula(s, child)
		if err != nil {
			return nil, nil, err
		}
		kids = append(kids, e.explainOp("not", neg, []*Explanation{ex}))
		current = differenceRanges(current, neg)
	}

	var err error
	current, err = e.applyConditions(s, current, and.Conditions)
	if err != nil {
		return nil, nil, err
	}

	if len(and.Focus) > 0 {
		current = applyFocus(current, and.Focus)
	}

	if and.Selector != nil {
		e.trace("and: selector on pattern %d", and.Selector.ID)
	}

	current = dedupRanges(current)
	e.trace("and: %d ranges", len(current))
	return current, e.explainOp("and", current, kids), nil
}

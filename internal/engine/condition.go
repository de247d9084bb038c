package engine

import (
	"github.com/andersk/semgrep/internal/entropy"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/evalexpr"
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/regex_analyzer"
	"github.com/andersk/semgrep/internal/rule"
)

// applyConditions filters ranges through an And node's metavariable
// conditions in declaration order. Each condition is a pure predicate
// over one range; a range survives only by passing all of them.
func (e *Engine) applyConditions(s *evalState, ranges []Range, conds []rule.Condition) ([]Range, error) {
	for _, cond := range conds {
		if len(ranges) == 0 {
			return ranges, nil
		}
		if err := s.ctx.Err(); err != nil {
			return nil, rerr.New(rerr.KindTimeout, err)
		}

		var err error
		switch c := cond.(type) {
		case *rule.ComparisonCondition:
			ranges = e.applyComparison(ranges, c)
		case *rule.RegexCondition:
			ranges, err = e.applyRegexCondition(ranges, c)
		case *rule.PatternCondition:
			ranges, err = e.applyPatternCondition(s, ranges, c)
		case *rule.AnalyzerCondition:
			ranges, err = e.applyAnalyzer(ranges, c)
		default:
			err = rerr.Newf(rerr.KindConfig, "unknown condition %T", cond)
		}
		if err != nil {
			return nil, err
		}
	}
	return ranges, nil
}

// applyComparison keeps ranges whose bindings satisfy a boolean
// expression. Unevaluable expressions (unbound variable, type mismatch,
// division by zero) drop the range quietly: a filter that cannot decide
// does not report.
func (e *Engine) applyComparison(ranges []Range, c *rule.ComparisonCondition) []Range {
	out := ranges[:0:0]
	for _, r := range ranges {
		env := make(evalexpr.Env, len(r.Bindings)*2)
		for _, name := range r.Bindings.Names() {
			v, _ := r.Bindings.Lookup(name)
			s := v.StringValue(e.cfg.ConstantPropagation)
			env[name] = s
			env[name[1:]] = s
		}
		ok, err := evalexpr.Eval(c.Expr, env)
		if err != nil {
			e.trace("comparison %q: %v", c.Expr, err)
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) applyRegexCondition(ranges []Range, c *rule.RegexCondition) ([]Range, error) {
	re, err := e.regexes.Compile(c.Pattern)
	if err != nil {
		return nil, rerr.Newf(rerr.KindConfig, "metavariable-regex %s: %v", c.Metavar, err)
	}
	out := ranges[:0:0]
	for _, r := range ranges {
		v, ok := r.Bindings.Lookup(c.Metavar)
		if !ok {
			continue
		}
		if re.MatchString(v.StringValue(e.cfg.ConstantPropagation)) != c.Negated {
			out = append(out, r)
		}
	}
	return out, nil
}

// applyPatternCondition keeps ranges whose bound fragment matches a
// nested formula. Without a language override the nested formula runs
// against the enclosing file narrowed to the fragment's span; with one,
// the fragment text is re-parsed as that language and evaluated as its
// own target. Nested failures are collected, never fatal: one fragment
// that breaks the nested evaluation only loses its own range.
func (e *Engine) applyPatternCondition(s *evalState, ranges []Range, c *rule.PatternCondition) ([]Range, error) {
	out := ranges[:0:0]
	for _, r := range ranges {
		v, ok := r.Bindings.Lookup(c.Metavar)
		if !ok {
			continue
		}
		if s.depth >= e.cfg.MaxNestingDepth {
			s.errs.Add(rerr.Newf(rerr.KindNested,
				"metavariable-pattern on %s exceeds nesting depth %d", c.Metavar, e.cfg.MaxNestingDepth))
			continue
		}

		nested := s.narrowed(v.Span)
		if c.Language != "" && c.Language != s.target.Lang {
			nested.target = matcher.NewFragmentTarget(s.target, v.Text, v.Span, c.Language)
			nested.contextSpan = nil
		}

		matched, _, err := e.evalFormula(nested, c.Formula)
		if nested.target != s.target {
			nested.target.Close()
		}
		if err != nil {
			re, isRule := err.(*rerr.RuleError)
			if isRule && re.Kind == rerr.KindTimeout {
				return nil, err
			}
			s.errs.Add(rerr.New(rerr.KindNested, err).WithSpan(v.Span))
			continue
		}
		if len(matched) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) applyAnalyzer(ranges []Range, c *rule.AnalyzerCondition) ([]Range, error) {
	out := ranges[:0:0]
	for _, r := range ranges {
		v, ok := r.Bindings.Lookup(c.Metavar)
		if !ok {
			continue
		}
		str := v.StringValue(e.cfg.ConstantPropagation)

		var flagged bool
		switch c.Analyzer {
		case rule.AnalyzerEntropy:
			flagged = entropy.IsHighEntropy(str)
		case rule.AnalyzerReDoS:
			flagged = regex_analyzer.IsReDoSVulnerable(str)
		default:
			return nil, rerr.Newf(rerr.KindConfig, "unknown analyzer %q", c.Analyzer)
		}
		if flagged {
			out = append(out, r)
		}
	}
	return out, nil
}

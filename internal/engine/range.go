package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/types"
)

// RangeKind records how a range entered the evaluation; it decides how the
// range behaves under intersection.
type RangeKind int

const (
	// RangePlain is an ordinary pattern match.
	RangePlain RangeKind = iota
	// RangeInside came from a pattern-inside operator: an enclosing
	// region rather than a finding in its own right.
	RangeInside
	// RangeRegexp came from a textual pattern-regex leaf.
	RangeRegexp
)

func (k RangeKind) String() string {
	switch k {
	case RangeInside:
		return "inside"
	case RangeRegexp:
		return "regexp"
	default:
		return "plain"
	}
}

// Range is the unit of formula evaluation: a span of the target, the
// metavariable bindings that produced it, and its kind. Ranges are value
// types; the algebra below never mutates its inputs.
type Range struct {
	Span     types.Span
	Bindings metavar.Bindings
	Kind     RangeKind
}

// mergeKind combines the kinds of two intersected ranges. A regexp on
// either side defers to the inner match's kind; otherwise inside
// dominates plain, so enclosure context survives further intersection.
func mergeKind(inner, outer RangeKind) RangeKind {
	if inner == RangeRegexp || outer == RangeRegexp {
		return inner
	}
	if inner == RangeInside || outer == RangeInside {
		return RangeInside
	}
	return RangePlain
}

// intersectRanges keeps each pair where one span encloses the other and
// the bindings agree on shared metavariables. The result takes the inner
// span and the union of both environments. Pairs that overlap without
// enclosure contribute nothing.
func intersectRanges(a, b []Range) []Range {
	var out []Range
	for _, ra := range a {
		for _, rb := range b {
			inner, outer := ra, rb
			if !inner.Span.ContainedIn(outer.Span) {
				inner, outer = rb, ra
				if !inner.Span.ContainedIn(outer.Span) {
					continue
				}
			}
			merged, ok := metavar.Merge(ra.Bindings, rb.Bindings)
			if !ok {
				continue
			}
			out = append(out, Range{
				Span:     inner.Span,
				Bindings: merged,
				Kind:     mergeKind(inner.Kind, outer.Kind),
			})
		}
	}
	return dedupRanges(out)
}

// differenceRanges removes every range of a that touches a range of b by
// enclosure in either direction: a match inside a negated region is
// discarded, and so is a match that encloses one. Bindings play no part
// in negation.
func differenceRanges(a, b []Range) []Range {
	out := make([]Range, 0, len(a))
	for _, ra := range a {
		removed := false
		for _, rb := range b {
			if ra.Span.ContainedIn(rb.Span) || rb.Span.ContainedIn(ra.Span) {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, ra)
		}
	}
	return out
}

// unionRanges concatenates and dedups.
func unionRanges(lists ...[]Range) []Range {
	var out []Range
	for _, l := range lists {
		out = append(out, l...)
	}
	return dedupRanges(out)
}

// dedupRanges drops ranges that duplicate another's span, bindings and
// kind, and orders the survivors by position.
func dedupRanges(ranges []Range) []Range {
	if len(ranges) <= 1 {
		return ranges
	}
	seen := make(map[string]bool, len(ranges))
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		key := rangeFingerprint(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Span.End < out[j].Span.End
	})
	return out
}

func rangeFingerprint(r Range) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d:%d", r.Span.Start, r.Span.End, r.Kind)
	for _, name := range r.Bindings.Names() {
		v, _ := r.Bindings.Lookup(name)
		fmt.Fprintf(&b, "|%s=%d:%d:%s", name, v.Span.Start, v.Span.End, v.Text)
	}
	return b.String()
}

// spansOf projects the spans out of a range list, for traces and
// explanations.
func spansOf(ranges []Range) []types.Span {
	spans := make([]types.Span, len(ranges))
	for i, r := range ranges {
		spans[i] = r.Span
	}
	return spans
}

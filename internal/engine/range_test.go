package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/types"
)

func rng(start, end int, kind RangeKind) Range {
	return Range{Span: types.NewSpan(start, end), Kind: kind}
}

func bound(r Range, name, text string, start, end int) Range {
	out := r
	out.Bindings = r.Bindings.Clone()
	if out.Bindings == nil {
		out.Bindings = metavar.Bindings{}
	}
	out.Bindings[name] = metavar.NewValue(text, types.NewSpan(start, end), types.LangGeneric)
	return out
}

func TestIntersectKeepsEnclosedPairs(t *testing.T) {
	a := []Range{rng(0, 10, RangePlain)}
	b := []Range{rng(2, 5, RangePlain)}

	out := intersectRanges(a, b)
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(2, 5), out[0].Span)

	// Symmetric in span terms.
	out = intersectRanges(b, a)
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(2, 5), out[0].Span)

	// Overlap without enclosure contributes nothing.
	assert.Empty(t, intersectRanges([]Range{rng(0, 5, RangePlain)}, []Range{rng(3, 8, RangePlain)}))
}

func TestIntersectIdempotent(t *testing.T) {
	a := []Range{rng(0, 10, RangePlain), rng(20, 30, RangePlain)}
	assert.Equal(t, a, intersectRanges(a, a))
}

func TestIntersectMergesBindings(t *testing.T) {
	a := []Range{bound(rng(2, 5, RangePlain), "$X", "foo", 2, 3)}
	b := []Range{bound(rng(0, 10, RangePlain), "$Y", "bar", 7, 9)}

	out := intersectRanges(a, b)
	require.Len(t, out, 1)
	assert.ElementsMatch(t, []string{"$X", "$Y"}, out[0].Bindings.Names())
}

func TestIntersectRejectsConflictingBindings(t *testing.T) {
	a := []Range{bound(rng(2, 5, RangePlain), "$X", "foo", 2, 3)}
	b := []Range{bound(rng(0, 10, RangePlain), "$X", "bar", 7, 9)}
	assert.Empty(t, intersectRanges(a, b))
}

func TestIntersectKindMerge(t *testing.T) {
	// Inside context dominates a plain inner match.
	out := intersectRanges([]Range{rng(2, 5, RangePlain)}, []Range{rng(0, 10, RangeInside)})
	require.Len(t, out, 1)
	assert.Equal(t, RangeInside, out[0].Kind)

	// A regexp participant defers to the inner match's kind.
	out = intersectRanges([]Range{rng(2, 5, RangePlain)}, []Range{rng(0, 10, RangeRegexp)})
	require.Len(t, out, 1)
	assert.Equal(t, RangePlain, out[0].Kind)
}

func TestDifferenceRemovesByEnclosureBothWays(t *testing.T) {
	// A negated sub-range eliminates the match that encloses it.
	assert.Empty(t, differenceRanges([]Range{rng(0, 10, RangePlain)}, []Range{rng(2, 5, RangePlain)}))

	// A match inside a negated region is eliminated too.
	assert.Empty(t, differenceRanges([]Range{rng(2, 5, RangePlain)}, []Range{rng(0, 10, RangePlain)}))

	// Disjoint negatives leave the match alone.
	out := differenceRanges([]Range{rng(0, 10, RangePlain)}, []Range{rng(20, 30, RangePlain)})
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(0, 10), out[0].Span)
}

func TestUnionDedupsAndSorts(t *testing.T) {
	out := unionRanges(
		[]Range{rng(20, 30, RangePlain), rng(0, 10, RangePlain)},
		[]Range{rng(0, 10, RangePlain)},
	)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Span.Start)
	assert.Equal(t, 20, out[1].Span.Start)
}

func TestIntersectDistributesOverUnion(t *testing.T) {
	a := []Range{rng(2, 5, RangePlain)}
	b := []Range{rng(6, 9, RangePlain)}
	c := []Range{rng(0, 10, RangePlain), rng(6, 9, RangePlain)}

	left := intersectRanges(unionRanges(a, b), c)
	right := unionRanges(intersectRanges(a, c), intersectRanges(b, c))
	assert.Equal(t, left, right)
}

func TestFocusNarrowsToBinding(t *testing.T) {
	r := bound(rng(0, 10, RangePlain), "$X", "x", 2, 3)

	out := applyFocus([]Range{r}, []string{"$X"})
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(2, 3), out[0].Span)

	// Focusing again is a no-op: the range already sits on the binding.
	assert.Equal(t, out, applyFocus(out, []string{"$X"}))
}

func TestFocusDropsUnboundAndDisjoint(t *testing.T) {
	r := bound(rng(0, 10, RangePlain), "$X", "x", 2, 3)
	assert.Empty(t, applyFocus([]Range{r}, []string{"$MISSING"}))

	disjoint := bound(rng(0, 10, RangePlain), "$X", "x", 20, 23)
	assert.Empty(t, applyFocus([]Range{disjoint}, []string{"$X"}))
}

func TestFocusSequentialFold(t *testing.T) {
	r := bound(bound(rng(0, 20, RangePlain), "$A", "a", 2, 8), "$B", "b", 4, 6)

	// $A narrows to [2,8], then $B narrows further to [4,6].
	out := applyFocus([]Range{r}, []string{"$A", "$B"})
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(4, 6), out[0].Span)

	// Reversed order: after $B the range is [4,6]; $A encloses it, so
	// the range survives unchanged.
	out = applyFocus([]Range{r}, []string{"$B", "$A"})
	require.Len(t, out, 1)
	assert.Equal(t, types.NewSpan(4, 6), out[0].Span)
}

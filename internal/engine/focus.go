package engine

// applyFocus narrows each surviving range to the spans of its focused
// metavariables, folding the focus list left to right. At each step a
// range either shrinks onto the focus binding, survives unchanged when it
// is already inside it, or is dropped: unbound focus variables and
// disjoint spans both eliminate the range.
func applyFocus(ranges []Range, focus []string) []Range {
	current := ranges
	for _, name := range focus {
		next := current[:0:0]
		for _, r := range current {
			v, ok := r.Bindings.Lookup(name)
			if !ok {
				continue
			}
			switch {
			case v.Span.ContainedIn(r.Span):
				r.Span = v.Span
				next = append(next, r)
			case r.Span.ContainedIn(v.Span):
				next = append(next, r)
			}
		}
		current = next
	}
	return dedupRanges(current)
}

package matcher

import (
	"bytes"
	"sort"
	"strings"

	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// matchRegex runs a pattern-regex leaf over the raw target bytes. Named
// capture groups become metavariable bindings: (?P<X>...) binds $X.
func (d *Dispatcher) matchRegex(pat *rule.Pattern, t *Target) ([]RawMatch, error) {
	re, err := d.regexes.Compile(pat.Source)
	if err != nil {
		return nil, err
	}

	idx := d.lineIndexFor(t)
	groupNames := re.SubexpNames()

	var matches []RawMatch
	for _, groups := range re.FindAllSubmatchIndex(t.Content, -1) {
		m := RawMatch{
			PatternID: pat.ID,
			Span:      idx.span(groups[0], groups[1]),
			Bindings:  metavar.Bindings{},
		}
		for i, name := range groupNames {
			if i == 0 || name == "" {
				continue
			}
			start, end := groups[2*i], groups[2*i+1]
			if start < 0 {
				continue
			}
			span := idx.span(start, end)
			m.Bindings["$"+name] = metavar.NewValue(string(t.Content[start:end]), span, t.Lang)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// matchLiteral finds non-overlapping occurrences of the pattern source as
// plain text, for targets no grammar covers.
func (d *Dispatcher) matchLiteral(pat *rule.Pattern, t *Target) []RawMatch {
	needle := []byte(strings.TrimSpace(pat.Source))
	if len(needle) == 0 {
		return nil
	}

	idx := d.lineIndexFor(t)
	var matches []RawMatch
	for off := 0; ; {
		i := bytes.Index(t.Content[off:], needle)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(needle)
		matches = append(matches, RawMatch{
			PatternID: pat.ID,
			Span:      idx.span(start, end),
			Bindings:  metavar.Bindings{},
		})
		off = end
	}
	return matches
}

// lineIndex converts byte offsets into row/column points. Built once per
// target and cached alongside the match cache.
type lineIndex struct {
	starts []int
}

func (d *Dispatcher) lineIndexFor(t *Target) *lineIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lines == nil {
		d.lines = make(map[string]*lineIndex)
	}
	if idx, ok := d.lines[t.key]; ok {
		return idx
	}
	idx := newLineIndex(t.Content)
	d.lines[t.key] = idx
	return idx
}

func newLineIndex(content []byte) *lineIndex {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (x *lineIndex) point(offset int) types.Point {
	row := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset }) - 1
	return types.Point{Row: row, Column: offset - x.starts[row]}
}

func (x *lineIndex) span(start, end int) types.Span {
	return types.Span{
		Start:      start,
		End:        end,
		StartPoint: x.point(start),
		EndPoint:   x.point(end),
	}
}

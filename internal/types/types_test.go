package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanContainment(t *testing.T) {
	tests := []struct {
		name      string
		inner     Span
		outer     Span
		contained bool
	}{
		{"proper containment", NewSpan(2, 5), NewSpan(0, 10), true},
		{"equal spans", NewSpan(0, 10), NewSpan(0, 10), true},
		{"shared start", NewSpan(0, 5), NewSpan(0, 10), true},
		{"shared end", NewSpan(5, 10), NewSpan(0, 10), true},
		{"overlap left", NewSpan(0, 5), NewSpan(3, 10), false},
		{"overlap right", NewSpan(8, 12), NewSpan(0, 10), false},
		{"disjoint", NewSpan(20, 30), NewSpan(0, 10), false},
		{"outer inside inner", NewSpan(0, 10), NewSpan(2, 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.contained, tt.inner.ContainedIn(tt.outer))
			assert.Equal(t, tt.contained, tt.outer.Contains(tt.inner))
		})
	}
}

func TestSpanShift(t *testing.T) {
	s := NewSpan(3, 7).Shift(10)
	assert.Equal(t, 13, s.Start)
	assert.Equal(t, 17, s.End)
}

func TestParseLanguage(t *testing.T) {
	lang, ok := ParseLanguage("golang")
	assert.True(t, ok)
	assert.Equal(t, LangGo, lang)

	lang, ok = ParseLanguage("ts")
	assert.True(t, ok)
	assert.Equal(t, LangTypeScript, lang)

	_, ok = ParseLanguage("cobol")
	assert.False(t, ok)
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("warning")
	assert.True(t, ok)
	assert.Equal(t, SeverityWarning, sev)

	_, ok = ParseSeverity("fatal")
	assert.False(t, ok)
}

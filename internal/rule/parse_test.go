package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andersk/semgrep/internal/types"
)

func TestParseSinglePattern(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: hardcoded-password
    message: hardcoded password for $USER
    severity: ERROR
    languages: [go]
    pattern: auth.Login($USER, "...")
`))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "hardcoded-password", r.ID)
	assert.Equal(t, types.SeverityError, r.Severity)
	assert.Equal(t, []types.Language{types.LangGo}, r.Languages)

	leaf, ok := r.Formula.(*Leaf)
	require.True(t, ok)
	assert.False(t, leaf.Inside)

	pat := r.Pattern(leaf.ID)
	require.NotNil(t, pat)
	assert.Equal(t, KindAST, pat.Kind)
	assert.Equal(t, `auth.Login($USER, "...")`, pat.Source)
}

func TestParsePatternsBlock(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: exec-in-handler
    languages: [python]
    patterns:
      - pattern-inside: "def $F(...): ..."
      - pattern: exec($CMD)
      - pattern-not: exec("...")
      - metavariable-regex:
          metavariable: $CMD
          regex: "^request\\."
      - focus-metavariable: $CMD
`))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	and, ok := rules[0].Formula.(*And)
	require.True(t, ok)
	assert.Len(t, and.Positives, 2)
	assert.Len(t, and.Negatives, 1)
	require.Len(t, and.Conditions, 1)
	assert.Equal(t, []string{"$CMD"}, and.Focus)

	inside, ok := and.Positives[0].(*Leaf)
	require.True(t, ok)
	assert.True(t, inside.Inside)

	// The negative entry is stored unwrapped, not as a Not node.
	_, isNot := and.Negatives[0].(*Not)
	assert.False(t, isNot)

	cond, ok := and.Conditions[0].(*RegexCondition)
	require.True(t, ok)
	assert.Equal(t, "$CMD", cond.Metavar)

	// Two positives: no selector hint.
	assert.Nil(t, and.Selector)
}

func TestParseSelectorHint(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: comparison-only
    languages: [go]
    patterns:
      - pattern: make([]$T, $N)
      - metavariable-comparison:
          comparison: $N > 1024
`))
	require.NoError(t, err)

	and, ok := rules[0].Formula.(*And)
	require.True(t, ok)
	require.NotNil(t, and.Selector)
	assert.Equal(t, and.Positives[0].(*Leaf).ID, and.Selector.ID)
}

func TestParsePatternEither(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: weak-hash
    languages: [go]
    pattern-either:
      - pattern: md5.New()
      - pattern: sha1.New()
`))
	require.NoError(t, err)

	or, ok := rules[0].Formula.(*Or)
	require.True(t, ok)
	assert.Len(t, or.Children, 2)
}

func TestParseMetavariablePattern(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: sql-in-string
    languages: [javascript]
    patterns:
      - pattern: db.query($Q)
      - metavariable-pattern:
          metavariable: $Q
          language: generic
          pattern-regex: "SELECT .* FROM"
`))
	require.NoError(t, err)

	and := rules[0].Formula.(*And)
	require.Len(t, and.Conditions, 1)
	cond, ok := and.Conditions[0].(*PatternCondition)
	require.True(t, ok)
	assert.Equal(t, "$Q", cond.Metavar)
	assert.Equal(t, types.LangGeneric, cond.Language)

	leaf, ok := cond.Formula.(*Leaf)
	require.True(t, ok)
	assert.Equal(t, KindRegex, rules[0].Pattern(leaf.ID).Kind)
}

func TestParseAnalyzer(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: high-entropy-secret
    languages: [go]
    patterns:
      - pattern: apiKey := $VAL
      - metavariable-analysis:
          metavariable: $VAL
          analyzer: entropy
`))
	require.NoError(t, err)

	and := rules[0].Formula.(*And)
	cond, ok := and.Conditions[0].(*AnalyzerCondition)
	require.True(t, ok)
	assert.Equal(t, AnalyzerEntropy, cond.Analyzer)
}

func TestParseTopLevelNotIsFolded(t *testing.T) {
	// A rule whose only operator is negative parses into an And with an
	// empty positive list; the evaluator reports the fatal empty-AND
	// error with rule context.
	b := &builder{patterns: map[types.PatternID]*Pattern{}}
	f := fold(&Not{Child: b.leaf("foo()", KindAST, false)})
	and, ok := f.(*And)
	require.True(t, ok)
	assert.Empty(t, and.Positives)
	assert.Len(t, and.Negatives, 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"no id",
			"rules:\n  - languages: [go]\n    pattern: foo()\n",
			"no id",
		},
		{
			"no languages",
			"rules:\n  - id: r\n    pattern: foo()\n",
			"no languages",
		},
		{
			"unknown language with suggestion",
			"rules:\n  - id: r\n    languages: [pyton]\n    pattern: foo()\n",
			`did you mean "python"`,
		},
		{
			"unknown operator with suggestion",
			"rules:\n  - id: r\n    languages: [go]\n    patterns:\n      - patern: foo()\n",
			`did you mean "pattern"`,
		},
		{
			"two formulas",
			"rules:\n  - id: r\n    languages: [go]\n    pattern: foo()\n    pattern-regex: foo\n",
			"exactly one of",
		},
		{
			"unknown analyzer",
			"rules:\n  - id: r\n    languages: [go]\n    patterns:\n      - pattern: foo($X)\n      - metavariable-analysis:\n          metavariable: $X\n          analyzer: sentiment\n",
			"unknown analyzer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCollectLeaves(t *testing.T) {
	rules, err := Parse([]byte(`
rules:
  - id: r
    languages: [go]
    patterns:
      - pattern-either:
          - pattern: a()
          - pattern: b()
      - pattern-not: c()
`))
	require.NoError(t, err)

	leaves := CollectLeaves(rules[0].Formula)
	require.Len(t, leaves, 3)
	ids := []types.PatternID{leaves[0].ID, leaves[1].ID, leaves[2].ID}
	assert.Equal(t, []types.PatternID{0, 1, 2}, ids)
}

func TestFileSchema(t *testing.T) {
	data, err := FileSchemaJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "metavariable-comparison")
	assert.Contains(t, string(data), "focus-metavariable")
}

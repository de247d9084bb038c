package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andersk/semgrep/internal/types"
)

func TestRuleErrorFormatting(t *testing.T) {
	err := Newf(KindConfig, "rule contains `patterns` with no positive patterns").
		WithRule("no-positive").
		WithPath("main.go").
		WithSpan(types.NewSpan(10, 20))

	msg := err.Error()
	assert.Contains(t, msg, "config")
	assert.Contains(t, msg, "no-positive")
	assert.Contains(t, msg, "main.go:10-20")
	assert.Contains(t, msg, "no positive patterns")
}

func TestRuleErrorUnwrap(t *testing.T) {
	underlying := stderrors.New("boom")
	err := New(KindMatching, underlying).WithRule("r1")
	assert.True(t, stderrors.Is(err, underlying))
}

func TestFatalClassification(t *testing.T) {
	assert.True(t, Newf(KindConfig, "x").Fatal())
	assert.True(t, Newf(KindTimeout, "x").Fatal())
	assert.False(t, Newf(KindMatching, "x").Fatal())
	assert.False(t, Newf(KindNested, "x").Fatal())
}

func TestErrorSetAccumulates(t *testing.T) {
	var set ErrorSet
	set.Add(Newf(KindMatching, "first"))
	set.Add(nil)
	set.Add(Newf(KindNested, "second"))

	require.Equal(t, 2, set.Len())
	assert.Contains(t, set.Errors()[0].Error(), "first")
	assert.Contains(t, set.Errors()[1].Error(), "second")

	var other ErrorSet
	other.Add(Newf(KindFile, "third"))
	set.AddAll(&other)
	assert.Equal(t, 3, set.Len())
}

func TestMultiError(t *testing.T) {
	assert.Nil(t, NewMultiError([]error{nil, nil}))

	single := NewMultiError([]error{stderrors.New("only")})
	require.NotNil(t, single)
	assert.Equal(t, "only", single.Error())

	multi := NewMultiError([]error{stderrors.New("a"), stderrors.New("b")})
	require.NotNil(t, multi)
	assert.Contains(t, multi.Error(), "2 errors")
	assert.Len(t, multi.Unwrap(), 2)
}

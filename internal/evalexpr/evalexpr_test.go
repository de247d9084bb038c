package evalexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalComparisons(t *testing.T) {
	env := Env{"$N": int64(2048), "$NAME": "request"}

	tests := []struct {
		expr string
		want bool
	}{
		{"$N > 1024", true},
		{"$N < 1024", false},
		{"$N >= 2048", true},
		{"$N == 2048", true},
		{"$N != 2048", false},
		{"$N > 1000 and $N < 3000", true},
		{"$N > 1000 && $N < 1500", false},
		{"$N < 1000 or $NAME == 'request'", true},
		{"not ($N < 1000)", true},
		{"!($N < 1000)", true},
		{"$NAME == \"request\"", true},
		{"'que' in $NAME", true},
		{"'xyz' not in $NAME", true},
		{"len($NAME) == 7", true},
		{"int('0x10') == 16", true},
		{"str($N) == '2048'", true},
		{"upper($NAME) == 'REQUEST'", true},
		{"$N % 2 == 0", true},
		{"$N * 2 == 4096", true},
		{"($N + 2) / 2 == 1025", true},
		{"-$N < 0", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericStrings(t *testing.T) {
	// Raw bindings arrive as source text; numeric comparison still works.
	env := Env{"$N": "512"}
	got, err := Eval("$N > 100", env)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestShortCircuit(t *testing.T) {
	// The right side of a short-circuited connective is never evaluated,
	// so an unbound variable there does not make the expression fail.
	env := Env{"$A": true}
	got, err := Eval("$A or $MISSING > 1", env)
	require.NoError(t, err)
	assert.True(t, got)

	env = Env{"$A": false}
	got, err = Eval("$A and $MISSING > 1", env)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestUnevaluable(t *testing.T) {
	exprs := []string{
		"$MISSING > 1",
		"$S > 1",
		"1 +",
		"foo($X)",
		"'unterminated",
		"$N ~ 3",
		"1 / 0",
		"$N",
	}
	env := Env{"$S": "abc", "$N": int64(1)}
	for _, expr := range exprs {
		_, err := Eval(expr, env)
		assert.ErrorIs(t, err, ErrUnevaluable, "expr %q", expr)
	}
}

func TestEvalValueArithmetic(t *testing.T) {
	v, err := EvalValue("2 + 3 * 4", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(14), v)

	v, err = EvalValue("'a' + 'b'", nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", v)

	v, err = EvalValue("7 / 2", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

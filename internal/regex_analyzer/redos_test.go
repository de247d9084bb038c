package regex_analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReDoSVulnerable(t *testing.T) {
	tests := []struct {
		pattern    string
		vulnerable bool
	}{
		// Nested unbounded quantifiers
		{`(a+)+`, true},
		{`^(a+)+$`, true},
		{`(\d+)*`, true},
		{`(x+x+)+y`, true},
		{`([a-z]+)*@example`, true},

		// Quantified ambiguous alternations
		{`(a|a)*`, true},
		{`(a|ab)+`, true},
		{`(.|a)*`, true},

		// Safe patterns
		{`a+`, false},
		{`abc`, false},
		{`[a-z]+@[a-z]+`, false},
		{`(a|b)*`, false},
		{`^foo.*bar$`, false},
		{`a{1,3}b{2,4}`, false},

		// Not regexes at all
		{`just some text`, false},
		{`(unbalanced`, false},
		{``, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.vulnerable, IsReDoSVulnerable(tt.pattern))
		})
	}
}

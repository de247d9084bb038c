package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShannon(t *testing.T) {
	assert.Equal(t, 0.0, Shannon(""))
	assert.Equal(t, 0.0, Shannon("aaaaaaaa"))
	assert.InDelta(t, 1.0, Shannon("abababab"), 0.001)
	assert.InDelta(t, 2.0, Shannon("abcdabcd"), 0.001)
}

func TestIsHighEntropy(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want bool
	}{
		{"random api key", "x9T2mKqL8vRnZ4wPbYhE3cJd", true},
		{"base64 blob", "dGhpcyBpcyBhIHNlY3JldCBrZXkhIQ==", true},
		{"common password", "password123", false},
		{"identifier", "getUserName", false},
		{"repeated", "aaaaaaaaaaaaaaaa", false},
		{"too short", "x9T2mKq", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHighEntropy(tt.s), "entropy=%f", Shannon(tt.s))
		})
	}
}

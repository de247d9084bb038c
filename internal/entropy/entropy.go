// Package entropy scores the statistical randomness of strings. The
// entropy metavariable analyzer uses it to flag likely embedded secrets:
// API keys and tokens score far above identifiers and prose.
package entropy

import "math"

const (
	// DefaultThreshold is the bits-per-character score above which a
	// string counts as high entropy. English-like text sits around 3.0,
	// base64-encoded key material above 4.5.
	DefaultThreshold = 3.5

	// MinLength guards against tiny strings: entropy estimates over a
	// handful of characters are noise.
	MinLength = 8
)

// Shannon computes the Shannon entropy of s in bits per character.
// An empty string scores zero.
func Shannon(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	total := float64(len(s))
	var bits float64
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		bits -= p * math.Log2(p)
	}
	return bits
}

// IsHighEntropy reports whether s looks like random key material: long
// enough to score reliably and above the default threshold.
func IsHighEntropy(s string) bool {
	if len(s) < MinLength {
		return false
	}
	return Shannon(s) >= DefaultThreshold
}

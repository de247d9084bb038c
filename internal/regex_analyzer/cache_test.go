package regex_analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCompile(t *testing.T) {
	c := NewCache(8)

	re, err := c.Compile(`^foo`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("foobar"))
	assert.False(t, re.MatchString("barfoo"))

	// Multiline mode: ^ matches at line starts.
	assert.True(t, re.MatchString("bar\nfoo"))

	// Second compile is a hit returning the same object.
	re2, err := c.Compile(`^foo`)
	require.NoError(t, err)
	assert.Same(t, re, re2)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheFailuresAreCached(t *testing.T) {
	c := NewCache(8)

	_, err := c.Compile(`(unbalanced`)
	require.Error(t, err)
	_, err = c.Compile(`(unbalanced`)
	require.Error(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)

	for i := 0; i < 4; i++ {
		_, err := c.Compile(fmt.Sprintf("pattern%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

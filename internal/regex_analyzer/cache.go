// Package regex_analyzer compiles, caches and inspects regular
// expressions for the engine: the compile cache backs pattern-regex
// matching and metavariable-regex conditions, and the ReDoS classifier
// backs the redos metavariable analyzer.
package regex_analyzer

import (
	"container/list"
	"regexp"
	"sync"
)

// Cache is an LRU cache of compiled regular expressions. Conditions
// re-test the same handful of patterns against every surviving range, so
// compilation cost dominates without it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int

	stats CacheStats
}

// CacheStats tracks cache performance counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Failures  int64
}

type cacheEntry struct {
	key      string
	compiled *regexp.Regexp
	err      error
}

const (
	// DefaultCacheSize bounds the number of cached patterns. One rule
	// file rarely carries more than a few dozen distinct regexes.
	DefaultCacheSize = 256

	// maxPatternLength guards the cache against pathological inputs;
	// longer patterns compile uncached.
	maxPatternLength = 1000
)

// NewCache creates a compile cache holding up to maxSize patterns.
// A non-positive size falls back to the default.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Compile returns the compiled form of pattern, caching both successes
// and failures. Patterns compile in multiline mode so ^ and $ match line
// boundaries, matching how rule authors read pattern-regex.
func (c *Cache) Compile(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > maxPatternLength {
		return compileMultiline(pattern)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[pattern]; ok {
		c.lru.MoveToFront(elem)
		c.stats.Hits++
		entry := elem.Value.(*cacheEntry)
		return entry.compiled, entry.err
	}
	c.stats.Misses++

	compiled, err := compileMultiline(pattern)
	if err != nil {
		c.stats.Failures++
	}
	elem := c.lru.PushFront(&cacheEntry{key: pattern, compiled: compiled, err: err})
	c.entries[pattern] = elem

	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.stats.Evictions++
	}
	return compiled, err
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func compileMultiline(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?m)" + pattern)
}

// Package cache provides an optional, process-lifetime cache for compiled
// query artifacts, intended for long-running callers (the MCP server) that
// see the same or similar patterns across many invocations. The core
// orchestrator (pkg/search) never holds this cache itself: spec §5 requires
// it to carry no mutable state across calls, so caching lives one layer up,
// in whichever collaborator owns the process lifetime.
package cache

import (
	"github.com/probe-search/probe/pkg/alg/lru"
	"github.com/probe-search/probe/pkg/search/query"
)

// defaultMaxEntries bounds the number of distinct (pattern, exact) query
// processing results retained at once.
const defaultMaxEntries = 256

// QueryCache memoizes query.Process, which tokenizes, stems, and compiles
// one regexp per term plus one combined alternation regexp — work worth
// skipping when a caller repeats a pattern within the same server process.
type QueryCache struct {
	entries *lru.Cache[string, query.Processed]
}

// NewQueryCache returns a QueryCache bounded to maxEntries distinct queries.
// A non-positive maxEntries falls back to defaultMaxEntries.
func NewQueryCache(maxEntries int) *QueryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &QueryCache{
		entries: lru.New[string, query.Processed](lru.WithMaxEntries[string, query.Processed](maxEntries)),
	}
}

// Process returns the cached query.Processed for (pattern, exact) if
// present, otherwise computes it via query.Process, caches it, and returns
// it. The compiled regexps it returns are read-only after construction and
// safe to share across concurrent callers.
func (c *QueryCache) Process(pattern string, exact bool) (query.Processed, error) {
	key := cacheKey(pattern, exact)

	if cached, ok := c.entries.Get(key); ok {
		return cached, nil
	}

	processed, err := query.Process(pattern, exact)
	if err != nil {
		return query.Processed{}, err
	}

	c.entries.Put(key, processed)

	return processed, nil
}

// Len reports the number of distinct queries currently cached.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}

func cacheKey(pattern string, exact bool) string {
	if exact {
		return "e\x00" + pattern
	}

	return "f\x00" + pattern
}

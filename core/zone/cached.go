package zone

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the resolution cache when no size is configured
const DefaultCacheSize = 4096

// Cached memoizes Resolve results of an underlying resolver. Batches
// usually repeat a handful of origin/destination pairs.
type Cached struct {
	next  Resolver
	cache *lru.Cache[string, int]
}

// NewCached wraps next with an LRU cache holding up to size pairs
func NewCached(next Resolver, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, int](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func cacheKey(origin, dest string) string {
	return strings.TrimSpace(origin) + "|" + strings.TrimSpace(dest)
}

// Resolve implements Resolver
func (c *Cached) Resolve(origin, dest string) int {
	key := cacheKey(origin, dest)
	if z, ok := c.cache.Get(key); ok {
		return z
	}
	z := c.next.Resolve(origin, dest)
	c.cache.Add(key, z)
	return z
}

// Explain implements Resolver. Explanations are never cached.
func (c *Cached) Explain(origin, dest string) Resolution {
	return c.next.Explain(origin, dest)
}

// Len returns the number of cached pairs
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge drops every cached pair
func (c *Cached) Purge() {
	c.cache.Purge()
}

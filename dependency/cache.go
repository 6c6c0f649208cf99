package dependency

import (
	"context"
	"slices"

	"github.com/dpup/driverhub/library"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is used when NewCachedSource is given a non-positive size.
const DefaultCacheSize = 256

// CachedSource memoizes another Source by library key. Concurrent lookups of
// the same key share one call to the inner source. Errors are not cached.
//
// Libraries with the same key share the cached dependency objects, across
// drivers too. They are read-only: callers get their own slice but must Copy a
// dependency before changing it.
type CachedSource struct {
	inner Source
	cache *lru.Cache[string, []*library.Library]
	group singleflight.Group
}

// NewCachedSource wraps inner with an LRU cache holding size entries.
func NewCachedSource(inner Source, size int) *CachedSource {
	if inner == nil {
		inner = Declared
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []*library.Library](size)
	return &CachedSource{inner: inner, cache: cache}
}

// Dependencies returns the cached dependencies of lib, asking the inner source
// on a miss. The shared lookup runs detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (c *CachedSource) Dependencies(ctx context.Context, lib *library.Library) ([]*library.Library, error) {
	key := lib.Key()
	if deps, ok := c.cache.Get(key); ok {
		return slices.Clone(deps), nil
	}
	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		deps, err := c.inner.Dependencies(lookupCtx, lib)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, deps)
		return deps, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]*library.Library)), nil
	}
}

// Forget drops the cached dependencies of lib.
func (c *CachedSource) Forget(lib *library.Library) {
	c.cache.Remove(lib.Key())
}

// Len is the number of cached entries.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

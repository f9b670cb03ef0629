package redis

import (
	"context"
	"errors"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/pkg/circuitbreaker"
)

// OutlineCache stores assembled course outlines under OutlineKey. Reads and
// writes go through an optional breaker; invalidations always reach Redis.
type OutlineCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
}

// NewOutlineCache creates an outline cache. A non-positive ttl falls back
// to ten minutes.
func NewOutlineCache(cache *Cache, ttl time.Duration) *OutlineCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OutlineCache{cache: cache, ttl: ttl}
}

// WithBreaker guards reads and writes with b.
func (c *OutlineCache) WithBreaker(b *circuitbreaker.Breaker) *OutlineCache {
	c.breaker = b
	return c
}

func (c *OutlineCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Do(ctx, fn)
}

// GetOutline returns the cached outline. A miss is (nil, false, nil).
func (c *OutlineCache) GetOutline(ctx context.Context, courseID string) (*catalog.Outline, bool, error) {
	var (
		out  catalog.Outline
		miss bool
	)
	err := c.guard(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, OutlineKey(courseID), &out)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if miss || out.Course == nil {
		return nil, false, nil
	}
	return &out, true, nil
}

// SetOutline caches o under its course id.
func (c *OutlineCache) SetOutline(ctx context.Context, o *catalog.Outline) error {
	if o == nil || o.Course == nil {
		return ErrCacheNilValue
	}
	return c.guard(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, OutlineKey(o.Course.ID), o, c.ttl)
	})
}

// Invalidate drops the cached outline of a course.
func (c *OutlineCache) Invalidate(ctx context.Context, courseID string) error {
	return c.cache.Delete(ctx, OutlineKey(courseID))
}

package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"dompet/internal/core"
	"dompet/internal/store"
)

const categoriesKey = "categories"

// Categories is a store.CategoryReader that keeps the category list for a
// TTL. Concurrent misses share one backend read.
type Categories struct {
	reader store.CategoryReader
	lru    *LRUCache[[]core.Category]
	group  singleflight.Group
}

func NewCategories(reader store.CategoryReader, ttl time.Duration) *Categories {
	return NewCategoriesWithClock(reader, ttl, time.Now)
}

func NewCategoriesWithClock(reader store.CategoryReader, ttl time.Duration, now func() time.Time) *Categories {
	return &Categories{
		reader: reader,
		lru:    NewLRUCacheWithClock[[]core.Category](1, ttl, now),
	}
}

func (c *Categories) ListCategories(ctx context.Context) ([]core.Category, error) {
	if cats, ok := c.lru.Get(categoriesKey); ok {
		return cats, nil
	}
	v, err, _ := c.group.Do(categoriesKey, func() (interface{}, error) {
		cats, err := c.reader.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		c.lru.Set(categoriesKey, cats)
		return cats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Category), nil
}

// Invalidate drops the cached list.
func (c *Categories) Invalidate() {
	c.lru.Delete(categoriesKey)
}

// CleanExpired lets a Manager evict the list once it is stale.
func (c *Categories) CleanExpired() int {
	return c.lru.CleanExpired()
}

var (
	_ store.CategoryReader = (*Categories)(nil)
	_ Cleaner              = (*Categories)(nil)
)

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the per-process fallback used when Redis is not configured.
type MemoryCache struct {
	cache *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]byte, bool, error) {
	if x, found := c.cache.Get(key.String()); found {
		return x.([]byte), true, nil
	}
	return nil, false, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, payload []byte) error {
	c.cache.Set(key.String(), payload, gocache.DefaultExpiration)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...Key) error {
	for _, k := range keys {
		c.cache.Delete(k.String())
	}
	return nil
}

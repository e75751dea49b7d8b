package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps fetched listing pages in process memory. Pages are copied
// in and out, so a caller decoding a hit cannot change what the next run sees.
type MemoryCache struct {
	pages *gocache.Cache
}

// NewMemoryCache creates a cache whose pages live for ttl unless Set gives
// another lifetime
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{
		pages: gocache.New(ttl, sweepInterval(ttl)),
	}
}

// sweepInterval is how often expired pages are dropped: half the TTL,
// kept between 30s and 10m
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	d := ttl / 2
	if d < 30*time.Second {
		return 30 * time.Second
	}
	if d > 10*time.Minute {
		return 10 * time.Minute
	}
	return d
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.pages.Get(key)
	if !found {
		return nil, false
	}
	page, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), page...), true
}

// Set stores a copy of value. ttl <= 0 uses the cache's default lifetime.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.pages.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.pages.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.pages.Flush()
	return nil
}

// Len returns the number of cached pages, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.pages.ItemCount()
}

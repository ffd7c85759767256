package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"portfolio_aggregator/internal/app/port"
)

// MemoryCache is a process-local port.Cache backed by go-cache.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a cache whose janitor purges expired items every cleanupInterval.
// cleanupInterval <= 0 disables the janitor; Sweep can then be scheduled externally.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

var _ port.Cache = (*MemoryCache)(nil)

// Get returns a copy of the stored bytes. Expired items are reported as missing.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Set stores a copy of data for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(key, stored, ttl)
	return nil
}

// Sweep removes expired entries and reports how many were dropped.
func (c *MemoryCache) Sweep(_ context.Context) (int64, error) {
	before := c.store.ItemCount()
	c.store.DeleteExpired()
	return int64(before - c.store.ItemCount()), nil
}

// Len returns the number of stored items, expired ones included until swept.
func (c *MemoryCache) Len() int {
	return c.store.ItemCount()
}

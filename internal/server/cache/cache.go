// Package cache provides the in-memory caching layer for expensive
// read endpoints, backed by patrickmn/go-cache TTL expiry. The order
// stats query is the main user: it aggregates the whole orders table
// and the dashboard polls it on every header render.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Well-known cache keys.
const (
	KeyOrderStats = "orders:stats"
)

// Cache wraps go-cache with the handful of operations the handlers use.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache with the given default TTL and cleanup interval.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of cached entries.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

package dashboard

import (
	"sync"
	"time"
)

// DefaultCacheTTL mirrors the daily refresh cadence of the underlying data:
// spends arrive once a day and events are batch-flattened, so fresher
// queries only cost money.
const DefaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

// Cache is a small TTL cache for chart query results. Safe for concurrent
// use. Entries expire lazily on read; Clear drops everything at once.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for key, or false if absent or expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for the cache's TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:   value,
		expires: c.now().Add(c.ttl),
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

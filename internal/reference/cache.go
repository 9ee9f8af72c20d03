package reference

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CacheEntry wraps a cached value with its fetch and expiry times.
type CacheEntry[T any] struct {
	Data      T
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Cache is a thread-safe TTL cache. Entries are invalidated strictly by
// expiry time; expired entries are never returned.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]CacheEntry[T]
	ttl   time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	now func() time.Time
}

// NewCache creates a cache with the given entry TTL.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		items: make(map[string]CacheEntry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// normalizeKey produces the canonical cache key for a search term.
func normalizeKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[T]) Get(key string) (T, bool) {
	key = normalizeKey(key)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.ExpiresAt) {
		c.misses.Add(1)
		var zero T
		return zero, false
	}

	c.hits.Add(1)
	return entry.Data, true
}

// Set stores a value under key with the cache's TTL.
func (c *Cache[T]) Set(key string, value T) {
	key = normalizeKey(key)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheEntry[T]{
		Data:      value,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	// Opportunistically drop expired entries so the map stays bounded.
	if len(c.items) > 1 && len(c.items)%256 == 0 {
		for k, e := range c.items {
			if now.After(e.ExpiresAt) {
				delete(c.items, k)
			}
		}
	}
}

// Delete removes an entry.
func (c *Cache[T]) Delete(key string) {
	key = normalizeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of entries, including any not yet pruned.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit and miss counts.
func (c *Cache[T]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Package cache is a generic in-memory TTL cache plus a loader that
// collapses concurrent misses for the same key into one call.
//
// TTLCache holds entries that stop being readable once their expiry passes.
// Expired entries are never returned by Get; they are physically removed by
// a janitor goroutine every cleanupInterval, so the map does not grow with
// dead keys. There is no size bound and no eviction besides expiry.
//
// Thread safety: a sync.RWMutex guards the map, readers run in parallel and
// writers are exclusive.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a generic in-memory TTL cache.
//
//	c := cache.New[string, int](time.Minute, 5*time.Minute)
//	defer c.Close()
//	c.Set("key", 42)
//	val, ok := c.Get("key")
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// New creates a cache whose entries live for ttl by default and starts the
// janitor goroutine. Close must be called to stop it.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:     make(map[K]entry[V]),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

// Get returns (value, true) for a present, unexpired key and
// (zero, false) otherwise.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value with the cache's default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with an explicit TTL. Listings, details and
// static lists share one cache but expire on different schedules.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete removes a single key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// DeleteFunc removes every key the predicate matches.
func (c *TTLCache[K, V]) DeleteFunc(predicate func(key K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if predicate(key) {
			delete(c.entries, key)
		}
	}
}

// Clear empties the cache.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close stops the janitor goroutine. Safe to call more than once.
func (c *TTLCache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
}

func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats is a snapshot of loader counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Shared  uint64 `json:"shared"`
	Entries int    `json:"entries"`
}

// Loader memoizes fn results per key in a TTLCache and deduplicates
// in-flight calls: while one caller is fetching a key, other callers for
// the same key wait for that result instead of issuing their own request.
//
// Failed loads are not cached, so the next caller retries.
type Loader[V any] struct {
	cache *TTLCache[string, V]
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	shared atomic.Uint64
}

// NewLoader creates a loader backed by a fresh cache. defaultTTL applies
// when Load is called with ttl <= 0.
func NewLoader[V any](defaultTTL, cleanupInterval time.Duration) *Loader[V] {
	return &Loader[V]{
		cache: New[string, V](defaultTTL, cleanupInterval),
	}
}

// SetClock replaces the clock used for expiry. Tests use it to move time
// forward without sleeping.
func (l *Loader[V]) SetClock(now func() time.Time) {
	l.cache.mu.Lock()
	defer l.cache.mu.Unlock()
	l.cache.now = now
}

// Load returns the cached value for key, or runs fn once for all concurrent
// callers and caches its result for ttl.
//
// The shared call runs detached from any single caller's cancellation so one
// impatient caller cannot fail the others; each caller still stops waiting
// when its own ctx is done.
func (l *Loader[V]) Load(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		l.hits.Add(1)
		return v, nil
	}
	l.misses.Add(1)

	ch := l.group.DoChan(key, func() (any, error) {
		// Another caller may have filled the entry between our Get and DoChan.
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}

		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}

		if ttl > 0 {
			l.cache.SetWithTTL(key, v, ttl)
		} else {
			l.cache.Set(key, v)
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			l.shared.Add(1)
		}
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Forget drops a single key.
func (l *Loader[V]) Forget(key string) {
	l.cache.Delete(key)
	l.group.Forget(key)
}

// Clear empties the cache. This is the only invalidation besides TTL expiry.
func (l *Loader[V]) Clear() {
	l.cache.Clear()
}

// Stats returns the current counters.
func (l *Loader[V]) Stats() Stats {
	return Stats{
		Hits:    l.hits.Load(),
		Misses:  l.misses.Load(),
		Shared:  l.shared.Load(),
		Entries: l.cache.Len(),
	}
}

// Close stops the underlying cache janitor.
func (l *Loader[V]) Close() {
	l.cache.Close()
}

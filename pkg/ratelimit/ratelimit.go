// Package ratelimit holds the in-memory, per-key limiters used by public
// endpoints: the contact form (WindowLimiter) and the image proxy
// (BurstLimiter).
//
// Both keep one bucket per key (usually the client IP) behind a
// sync.RWMutex and run a janitor goroutine that drops stale buckets.
// The site runs as a single instance, so no shared store is involved.
//
// The package imports nothing from the project (leaf dependency), so both
// handlers and services can use it without import cycles.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// bucket counts requests in the current fixed window.
type bucket struct {
	count       int
	windowStart time.Time
}

// WindowLimiter allows maxAttempts requests per key within window.
//
//	limiter := NewWindowLimiter(5, 10*time.Minute)
//	defer limiter.Stop()
//	if !limiter.Allow(ip) { return 429 }
type WindowLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewWindowLimiter creates a limiter and starts its janitor, which runs
// every minute.
func NewWindowLimiter(maxAttempts int, window time.Duration) *WindowLimiter {
	rl := &WindowLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow counts a request for key and reports whether it is within the limit.
// Rejected requests are counted too.
func (rl *WindowLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &bucket{count: 1, windowStart: now}
		return true
	}

	if now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	return b.count <= rl.maxAttempts
}

// Reset forgets the key's counter.
func (rl *WindowLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// RetryAfterSeconds returns how long key has to wait until its window
// resets, rounded up. Used for the Retry-After header.
func (rl *WindowLimiter) RetryAfterSeconds(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, exists := rl.buckets[key]
	if !exists {
		return 0
	}

	remaining := rl.window - rl.now().Sub(b.windowStart)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Stop ends the janitor goroutine. Safe to call more than once.
func (rl *WindowLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *WindowLimiter) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *WindowLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window {
			delete(rl.buckets, key)
		}
	}
}

// FormatRetryMessage renders a wait time for logs: "2 minute(s)", "45 second(s)".
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}

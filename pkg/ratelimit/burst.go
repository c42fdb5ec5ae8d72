package ratelimit

import (
	"sync"
	"time"
)

// burstBucket is either counting (cooldownUntil zero) or cooling down.
type burstBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time
}

// BurstLimiter allows maxRequests per short window and, once a key goes
// over, rejects everything from it for cooldown. The image proxy uses it:
// a gallery legitimately loads a dozen photos at once, a scraper loads
// hundreds.
//
//	limiter := NewBurstLimiter(60, 10*time.Second, 30*time.Second)
type BurstLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*burstBucket
	maxRequests int
	window      time.Duration
	cooldown    time.Duration
	now         func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewBurstLimiter creates a limiter and starts its janitor (every 30s).
func NewBurstLimiter(maxRequests int, window, cooldown time.Duration) *BurstLimiter {
	rl := &BurstLimiter{
		buckets:     make(map[string]*burstBucket),
		maxRequests: maxRequests,
		window:      window,
		cooldown:    cooldown,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether key may make another request.
//
// 1. Cooling down → reject.
// 2. Cooldown just ended or window passed → start a new window.
// 3. Otherwise count, and start the cooldown when the limit is crossed.
func (rl *BurstLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &burstBucket{count: 1, windowStart: now}
		return true
	}

	if !b.cooldownUntil.IsZero() && now.Before(b.cooldownUntil) {
		return false
	}

	if !b.cooldownUntil.IsZero() || now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	b.count++
	if b.count > rl.maxRequests {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}

	return true
}

// CooldownSeconds returns the remaining cooldown, rounded up, or 0.
func (rl *BurstLimiter) CooldownSeconds(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, exists := rl.buckets[key]
	if !exists || b.cooldownUntil.IsZero() {
		return 0
	}

	remaining := b.cooldownUntil.Sub(rl.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Stop ends the janitor goroutine. Safe to call more than once.
func (rl *BurstLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *BurstLimiter) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
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

// cleanup keeps buckets that are still inside their window or cooldown.
func (rl *BurstLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		windowExpired := now.Sub(b.windowStart) > rl.window
		cooldownExpired := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)

		if windowExpired && cooldownExpired {
			delete(rl.buckets, key)
		}
	}
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWindowLimiter_Allow(t *testing.T) {
	rl := NewWindowLimiter(3, 10*time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := range 3 {
		assert.True(t, rl.Allow("1.2.3.4"), "attempt %d", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other keys are independent")

	assert.Equal(t, 601, rl.RetryAfterSeconds("1.2.3.4"))

	now = now.Add(11 * time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"), "new window after expiry")
	assert.Equal(t, 0, rl.RetryAfterSeconds("unknown"))
}

func TestWindowLimiter_ResetAndCleanup(t *testing.T) {
	rl := NewWindowLimiter(1, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	rl.Reset("a")
	assert.True(t, rl.Allow("a"))

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.buckets)
}

func TestBurstLimiter_Cooldown(t *testing.T) {
	rl := NewBurstLimiter(2, 10*time.Second, 30*time.Second)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip"))
	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"), "third request crosses the limit")
	assert.Equal(t, 31, rl.CooldownSeconds("ip"))

	// Still cooling down even after the window itself passed.
	now = now.Add(15 * time.Second)
	assert.False(t, rl.Allow("ip"))

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("ip"))
	assert.Equal(t, 0, rl.CooldownSeconds("ip"))
}

func TestBurstLimiter_CleanupKeepsCoolingBuckets(t *testing.T) {
	rl := NewBurstLimiter(1, time.Second, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("hot")
	rl.Allow("hot")
	rl.Allow("cold")

	now = now.Add(5 * time.Second)
	rl.cleanup()

	_, hot := rl.buckets["hot"]
	_, cold := rl.buckets["cold"]
	assert.True(t, hot)
	assert.False(t, cold)
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(125))
	assert.Equal(t, "45 second(s)", FormatRetryMessage(45))
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTTLCache_SetGet(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 1)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 10*time.Minute)

	now = now.Add(2 * time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "default ttl entry should have expired")

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	// Expired entries stay in the map until the janitor runs.
	assert.Equal(t, 2, c.Len())
	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := New[string, string](time.Minute, time.Minute)
	defer c.Close()

	c.Set("list|page=1", "x")
	c.Set("list|page=2", "y")
	c.Set("detail|7", "z")

	c.Delete("detail|7")
	_, ok := c.Get("detail|7")
	assert.False(t, ok)

	c.DeleteFunc(func(key string) bool { return key == "list|page=1" })
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_CloseTwice(t *testing.T) {
	c := New[string, int](time.Minute, time.Millisecond)
	c.Close()
	assert.NotPanics(t, c.Close)
}

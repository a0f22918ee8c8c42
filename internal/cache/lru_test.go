package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3)

	_, okB := c.Get("b")
	va, okA := c.Get("a")
	assert.False(t, okB, "b should have been evicted")
	assert.True(t, okA)
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entries are dropped on read")
}

func TestLRUCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, 0)
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	now = now.Add(24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

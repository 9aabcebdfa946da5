package whmcs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache()

	cache.Put("key", "value", time.Minute)

	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestCacheMiss(t *testing.T) {
	cache := NewCache()

	_, ok := cache.Get("absent")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache()

	cache.Put("key", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("key")
	assert.False(t, ok)

	// The expired read evicted the entry.
	cache.mu.Lock()
	_, present := cache.entries["key"]
	cache.mu.Unlock()
	assert.False(t, present)
}

func TestCacheOverwrite(t *testing.T) {
	cache := NewCache()

	cache.Put("key", "old", time.Minute)
	cache.Put("key", "new", time.Minute)

	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache()

	cache.Put("a", 1, time.Minute)
	cache.Put("b", 2, time.Minute)
	cache.Clear()

	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestCacheKeyOrderIndependent(t *testing.T) {
	a := cacheKey("GetProducts", map[string]string{"pid": "1", "gid": "2"})
	b := cacheKey("GetProducts", map[string]string{"gid": "2", "pid": "1"})
	assert.Equal(t, a, b)

	assert.NotEqual(t,
		cacheKey("GetProducts", map[string]string{"pid": "1"}),
		cacheKey("GetProducts", map[string]string{"pid": "2"}))

	assert.Equal(t, "GetProducts", cacheKey("GetProducts", nil))
}

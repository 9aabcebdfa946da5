package whmcs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	data   interface{}
	expiry time.Time
}

// Cache is a TTL cache keyed by request fingerprint. Entries are replaced
// wholesale on re-fetch and evicted lazily on expired reads. Size is
// unbounded; the key space is the set of distinct API requests, which is
// small in practice.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key. A read past the entry's expiry
// evicts it and reports a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

// Put stores data under key with expiry = now + ttl, overwriting any
// existing entry.
func (c *Cache) Put(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, expiry: time.Now().Add(ttl)}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// cacheKey builds a deterministic fingerprint for a logical request:
// the action name plus an order-independent serialization of its
// parameters, so semantically identical requests collapse to one entry.
func cacheKey(action string, params map[string]string) string {
	if len(params) == 0 {
		return action
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(action)
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%s", k, params[k])
	}
	return b.String()
}

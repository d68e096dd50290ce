package oracle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Cache is an in-process TTL cache for oracle results, keyed by a hash of
// the call's semantic inputs. It is advisory: a miss falls through to the
// oracle-or-fallback path, never to an error. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	nowFunc func() time.Time
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewCache creates a Cache with the given TTL. A non-positive TTL disables
// caching entirely.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Key hashes a method name and its semantic inputs into a cache key.
func Key(method string, inputs ...string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(inputs, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.nowFunc().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key. Expired entries are swept opportunistically
// once the map grows past a few thousand entries.
func (c *Cache) Set(key string, value any) {
	if c == nil || c.ttl <= 0 {
		return
	}
	now := c.nowFunc()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 4096 {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

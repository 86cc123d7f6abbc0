// Package dedupe tracks already-seen webhook event keys so redelivered
// batches do not relay the same message twice.
package dedupe

import (
	"strings"
	"sync"
	"time"
)

// Cache is a TTL map of seen event keys. Expired entries are pruned
// opportunistically on each check.
type Cache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// New creates a cache; a non-positive ttl defaults to 10 minutes.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether key was observed within the TTL window, marking it
// if not. An empty key is never considered seen.
func (c *Cache) Seen(key string, now time.Time) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = now.Add(c.ttl)
	return false
}

// Len returns the number of tracked keys after pruning.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(time.Now())
	return len(c.seen)
}

func (c *Cache) pruneLocked(now time.Time) {
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}
}

// ABOUTME: TTL cache in front of a RenderFunc, keyed by the sha256 of the DOT text and the format.
// ABOUTME: Failed renders are not cached; expired entries are swept on insert.
package diagram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cached struct {
	data    []byte
	created time.Time
}

// Cache memoizes rendered diagrams. Safe for concurrent use.
type Cache struct {
	render RenderFunc
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cached
}

// NewCache wraps render. Entries older than ttl are rendered again.
func NewCache(render RenderFunc, ttl time.Duration) *Cache {
	return &Cache{
		render:  render,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cached),
	}
}

// Render returns the cached output for dotText and format, rendering on a miss.
func (c *Cache) Render(ctx context.Context, dotText, format string) ([]byte, error) {
	key := cacheKey(dotText, format)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.created) < c.ttl {
		return e.data, nil
	}

	data, err := c.render(ctx, dotText, format)
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.mu.Lock()
	for k, old := range c.entries {
		if now.Sub(old.created) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cached{data: data, created: now}
	c.mu.Unlock()
	return data, nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cached)
	c.mu.Unlock()
}

func cacheKey(dotText, format string) string {
	sum := sha256.Sum256([]byte(dotText))
	return hex.EncodeToString(sum[:]) + ":" + format
}

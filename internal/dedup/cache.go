// Package dedup remembers which identifiers were forwarded to which
// destinations within an expiration window.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the default expiration window.
const DefaultTTL = 60 * time.Minute

// Cache is a time-windowed membership set keyed by (identifier, destination).
type Cache interface {
	// Exists reports whether the pair was added within the window.
	Exists(ctx context.Context, identifier, destination string) (bool, error)
	// Add records the pair with the current time, overwriting any entry.
	Add(ctx context.Context, identifier, destination string) error
}

type key struct {
	identifier  string
	destination string
}

// MemoryCache is an in-process Cache. Expired entries are swept on access.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[key]time.Time
}

// NewMemoryCache creates a cache with the given window. A non-positive ttl
// uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[key]time.Time),
	}
}

// WithClock replaces the time source. Returns the cache for chaining.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Exists sweeps expired entries, then reports membership.
func (c *MemoryCache) Exists(_ context.Context, identifier, destination string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(c.now())
	_, ok := c.entries[key{identifier, destination}]
	return ok, nil
}

// Add sweeps expired entries, then records the pair.
func (c *MemoryCache) Add(_ context.Context, identifier, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)
	c.entries[key{identifier, destination}] = now
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(c.now())
	return len(c.entries)
}

// sweep removes entries strictly older than the window. Caller holds mu.
func (c *MemoryCache) sweep(now time.Time) {
	for k, added := range c.entries {
		if now.Sub(added) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// Verify interface compliance at compile time.
var _ Cache = (*MemoryCache)(nil)

package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)}
	return NewMemoryCache(ttl).WithClock(clock.Now), clock
}

func TestMemoryCache_AddThenExistsUntilTTL(t *testing.T) {
	cache, clock := newTestCache(60 * time.Minute)
	ctx := context.Background()

	if err := cache.Add(ctx, "mint", "@dest"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for _, step := range []time.Duration{0, 30 * time.Minute, 30 * time.Minute} {
		clock.Advance(step)
		ok, _ := cache.Exists(ctx, "mint", "@dest")
		if !ok {
			t.Fatalf("expected entry to exist at +%v", step)
		}
	}

	// Strictly after the window.
	clock.Advance(time.Nanosecond)
	ok, _ := cache.Exists(ctx, "mint", "@dest")
	if ok {
		t.Error("expected entry to be expired")
	}
	if cache.Len() != 0 {
		t.Errorf("expected expired entry to be swept, len=%d", cache.Len())
	}
}

func TestMemoryCache_KeyedByPair(t *testing.T) {
	cache, _ := newTestCache(time.Hour)
	ctx := context.Background()

	_ = cache.Add(ctx, "mint", "@a")

	if ok, _ := cache.Exists(ctx, "mint", "@b"); ok {
		t.Error("other destination should not be present")
	}
	if ok, _ := cache.Exists(ctx, "other", "@a"); ok {
		t.Error("other identifier should not be present")
	}
}

func TestMemoryCache_AddRefreshesTimestamp(t *testing.T) {
	cache, clock := newTestCache(10 * time.Minute)
	ctx := context.Background()

	_ = cache.Add(ctx, "mint", "@a")
	clock.Advance(8 * time.Minute)
	_ = cache.Add(ctx, "mint", "@a")
	clock.Advance(8 * time.Minute)

	if ok, _ := cache.Exists(ctx, "mint", "@a"); !ok {
		t.Error("re-added entry should still be live")
	}
}

func TestMemoryCache_SweepOnAddRemovesOthers(t *testing.T) {
	cache, clock := newTestCache(time.Minute)
	ctx := context.Background()

	_ = cache.Add(ctx, "old", "@a")
	clock.Advance(2 * time.Minute)
	_ = cache.Add(ctx, "new", "@a")

	cache.mu.Lock()
	_, stale := cache.entries[key{"old", "@a"}]
	cache.mu.Unlock()
	if stale {
		t.Error("expired entry should be removed by Add")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache, clock := newTestCache(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("mint-%d", i)
			_ = cache.Add(ctx, id, "@a")
			clock.Advance(time.Second)
			_, _ = cache.Exists(ctx, id, "@a")
		}(i)
	}
	wg.Wait()

	if cache.Len() == 0 {
		t.Error("expected live entries after concurrent adds")
	}
}

func TestNewMemoryCache_DefaultTTL(t *testing.T) {
	if c := NewMemoryCache(0); c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}

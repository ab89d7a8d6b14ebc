package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

func TestGetReturnsNilAfterInvalidate(t *testing.T) {
	c := newTestCache(t, Options{Name: "test"})
	ctx := context.Background()

	if err := c.Set(ctx, "k", map[string]int{"n": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}

	if err := c.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	hit, err = c.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if hit {
		t.Fatal("expected miss after invalidate, got pre-invalidation value")
	}
}

func TestInvalidatePatternClearsNamespace(t *testing.T) {
	c := newTestCache(t, Options{Name: "test"})
	ctx := context.Background()

	keys := []string{"user:a:week", "user:a:month", "user:b:week"}
	for _, k := range keys {
		if err := c.Set(ctx, k, 1); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := c.Invalidate(ctx, "user:a:*"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	var n int
	if hit, _ := c.Get(ctx, "user:a:week", &n); hit {
		t.Fatal("user:a:week should be gone")
	}
	if hit, _ := c.Get(ctx, "user:a:month", &n); hit {
		t.Fatal("user:a:month should be gone")
	}
	if hit, _ := c.Get(ctx, "user:b:week", &n); !hit {
		t.Fatal("user:b:week should survive")
	}
}

func TestExpiredEntryIsMissWithoutStaleServing(t *testing.T) {
	c := newTestCache(t, Options{Name: "test", TTL: time.Minute})
	ctx := context.Background()

	if err := c.Set(ctx, "k", 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	var out int
	hit, err := c.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Fatal("expected expired entry to miss")
	}
}

func TestEventOnlyCacheNeverExpires(t *testing.T) {
	c := newTestCache(t, Options{Name: "stats"})
	ctx := context.Background()

	if err := c.Set(ctx, SingletonKey, 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	var out int
	hit, err := c.Get(ctx, SingletonKey, &out)
	if err != nil || !hit || out != 7 {
		t.Fatalf("expected durable hit, got hit=%v out=%d err=%v", hit, out, err)
	}
}

func TestGetOrFillCoalescesConcurrentReaders(t *testing.T) {
	c := newTestCache(t, Options{Name: "catalog", TTL: time.Minute, StaleWhileRevalidate: true})
	ctx := context.Background()

	var fills atomic.Int32
	fill := func(context.Context) (any, error) {
		fills.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "fresh", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out string
			if _, err := c.GetOrFill(ctx, "k", &out, fill); err != nil {
				t.Errorf("get or fill: %v", err)
				return
			}
			if out != "fresh" {
				t.Errorf("unexpected value %q", out)
			}
		}()
	}
	wg.Wait()

	if got := fills.Load(); got != 1 {
		t.Fatalf("expected one coalesced fill, got %d", got)
	}
}

func TestGetOrFillServesStaleOnRefreshFailure(t *testing.T) {
	c := newTestCache(t, Options{Name: "catalog", TTL: time.Minute, StaleWhileRevalidate: true})
	ctx := context.Background()

	if err := c.Set(ctx, "k", "old"); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	fillErr := errors.New("upstream down")
	var out string
	stale, err := c.GetOrFill(ctx, "k", &out, func(context.Context) (any, error) {
		return nil, fillErr
	})
	if err != nil {
		t.Fatalf("expected stale serve, got error %v", err)
	}
	if !stale {
		t.Fatal("expected stale flag")
	}
	if out != "old" {
		t.Fatalf("expected stale value, got %q", out)
	}
}

func TestRefreshReplacesValue(t *testing.T) {
	c := newTestCache(t, Options{Name: "catalog", StaleWhileRevalidate: true})
	ctx := context.Background()

	if err := c.Set(ctx, "k", "old"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Refresh(ctx, "k", func(context.Context) (any, error) {
		return "new", nil
	}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var out string
	if hit, err := c.Get(ctx, "k", &out); err != nil || !hit {
		t.Fatalf("get after refresh: hit=%v err=%v", hit, err)
	}
	if out != "new" {
		t.Fatalf("expected refreshed value, got %q", out)
	}
}

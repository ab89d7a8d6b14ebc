package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/metrics"
)

// FillFunc computes a fresh value for a cache key.
type FillFunc func(ctx context.Context) (any, error)

// Options configures one named cache.
type Options struct {
	Name  string
	Store Store
	// TTL of zero means event-invalidated only.
	TTL time.Duration
	// StaleWhileRevalidate keeps entries past TTL in the backing store so an
	// expired read can serve the stale value while a refresh runs.
	StaleWhileRevalidate bool
	// WaitTimeout bounds how long a concurrent reader waits on an in-flight
	// refresh before falling back to stale.
	WaitTimeout time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.CacheMetrics
}

const defaultWaitTimeout = 30 * time.Second

// Cache is one named cache with a uniform get/set/invalidate contract and at
// most one in-flight refresh per key.
type Cache struct {
	name        string
	store       Store
	ttl         time.Duration
	swr         bool
	waitTimeout time.Duration
	logg        *logger.Logger
	metrics     *metrics.CacheMetrics

	mu      sync.Mutex
	flights map[string]*flight

	now func() time.Time
}

type flight struct {
	done chan struct{}
	err  error
}

// New builds a named cache.
func New(opts Options) (*Cache, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("cache name required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &Cache{
		name:        opts.Name,
		store:       opts.Store,
		ttl:         opts.TTL,
		swr:         opts.StaleWhileRevalidate,
		waitTimeout: waitTimeout,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		flights:     make(map[string]*flight),
		now:         time.Now,
	}, nil
}

// Name returns the cache's registered name.
func (c *Cache) Name() string {
	return c.name
}

// Get loads the value at key into dest. Entries past TTL count as misses
// unless the cache serves stale values for revalidation.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, storedAt, found, err := c.load(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		c.markMiss()
		return false, nil
	}
	if c.expired(storedAt) && !c.swr {
		c.markMiss()
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cache %s key %s: %w", c.name, key, err)
	}
	c.markHit(c.expired(storedAt))
	return true, nil
}

// Set stores the value at key under the cache's configured policy.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := packEnvelope(value, c.now())
	if err != nil {
		return fmt.Errorf("encode cache %s key %s: %w", c.name, key, err)
	}
	// Stale-while-revalidate caches keep entries past TTL so the stale value
	// survives a failing refresh; staleness is judged from the envelope.
	backingTTL := c.ttl
	if c.swr || c.ttl == 0 {
		backingTTL = 0
	}
	return c.store.Set(ctx, key, data, backingTTL)
}

// Invalidate drops every key matching the glob pattern; empty pattern clears
// the whole namespace.
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = "*"
	}
	return c.store.Invalidate(ctx, pattern)
}

// GetOrFill returns the cached value or computes it with fill. Expired
// entries are served stale while an async refresh runs; concurrent readers
// during a miss coalesce on a single in-flight fill and fall back to stale
// after the bounded wait. The stale return reports whether dest holds a value
// past its TTL.
func (c *Cache) GetOrFill(ctx context.Context, key string, dest any, fill FillFunc) (bool, error) {
	raw, storedAt, found, err := c.load(ctx, key)
	if err != nil {
		return false, err
	}

	if found && !c.expired(storedAt) {
		c.markHit(false)
		return false, json.Unmarshal(raw, dest)
	}

	if found && c.swr {
		// Serve stale now; refresh in the background.
		c.refreshAsync(key, fill)
		c.markHit(true)
		return true, json.Unmarshal(raw, dest)
	}

	// Miss: coalesce on one in-flight fill.
	fl, leader := c.joinFlight(key)
	if leader {
		fl.err = c.runFill(ctx, key, fill)
		c.finishFlight(key, fl)
	} else {
		select {
		case <-fl.done:
		case <-time.After(c.waitTimeout):
			c.markDegraded()
			return false, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cache %s refresh timed out", c.name))
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if fl.err != nil {
		return false, fl.err
	}

	raw, _, found, err = c.load(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("cache %s key %s empty after fill", c.name, key))
	}
	return false, json.Unmarshal(raw, dest)
}

// Refresh recomputes the value at key regardless of freshness. On failure the
// stale value is kept and the degraded state logged.
func (c *Cache) Refresh(ctx context.Context, key string, fill FillFunc) error {
	fl, leader := c.joinFlight(key)
	if !leader {
		select {
		case <-fl.done:
			return fl.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fl.err = c.runFill(ctx, key, fill)
	c.finishFlight(key, fl)
	return fl.err
}

func (c *Cache) runFill(ctx context.Context, key string, fill FillFunc) error {
	value, err := fill(ctx)
	if err != nil {
		if c.logg != nil {
			fillCtx := c.logg.WithFields(ctx, map[string]any{"cache": c.name, "key": key})
			c.logg.Error(fillCtx, "cache refresh failed, keeping stale value", err)
		}
		c.markDegraded()
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("refresh cache %s", c.name))
	}
	return c.Set(ctx, key, value)
}

func (c *Cache) refreshAsync(key string, fill FillFunc) {
	fl, leader := c.joinFlight(key)
	if !leader {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.waitTimeout)
		defer cancel()
		fl.err = c.runFill(ctx, key, fill)
		c.finishFlight(key, fl)
	}()
}

func (c *Cache) joinFlight(key string) (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.flights[key]; ok {
		return existing, false
	}
	fl := &flight{done: make(chan struct{})}
	c.flights[key] = fl
	return fl, true
}

func (c *Cache) finishFlight(key string, fl *flight) {
	c.mu.Lock()
	delete(c.flights, key)
	c.mu.Unlock()
	close(fl.done)
}

func (c *Cache) load(ctx context.Context, key string) (json.RawMessage, time.Time, bool, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, time.Time{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read cache %s", c.name))
	}
	if !found {
		return nil, time.Time{}, false, nil
	}
	raw, storedAt, err := unpackEnvelope(data)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode cache %s envelope: %w", c.name, err)
	}
	return raw, storedAt, true, nil
}

func (c *Cache) expired(storedAt time.Time) bool {
	if c.ttl == 0 {
		return false
	}
	return c.now().Sub(storedAt) > c.ttl
}

func (c *Cache) markHit(stale bool) {
	if c.metrics == nil {
		return
	}
	if stale {
		c.metrics.IncStale(c.name)
		return
	}
	c.metrics.IncHit(c.name)
}

func (c *Cache) markMiss() {
	if c.metrics != nil {
		c.metrics.IncMiss(c.name)
	}
}

func (c *Cache) markDegraded() {
	if c.metrics != nil {
		c.metrics.IncDegraded(c.name)
	}
}

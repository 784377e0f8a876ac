// Package cache holds fetched snapshots for a bounded time window.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL maps key -> (value, expiry). Expired entries are treated as absent and
// dropped on the next access. Concurrent loads of the same key share one
// call to the loader.
type TTL[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[V]
	gens  map[string]uint64
	group singleflight.Group
}

type Option[V any] func(*TTL[V])

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTL[V]) { c.now = now }
}

func New[V any](ttl time.Duration, opts ...Option[V]) *TTL[V] {
	c := &TTL[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
		gens:  make(map[string]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *TTL[V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// SetTTL changes the lifetime of entries stored from now on. Entries
// already cached keep their expiry.
func (c *TTL[V]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Expiry reports when key stops being served.
func (c *TTL[V]) Expiry(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expires) {
		return time.Time{}, false
	}
	return e.expires, true
}

func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: v, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops key. A load of key already in flight still returns to
// its callers but is not stored.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.gens[key]++
	c.mu.Unlock()
	c.group.Forget(key)
}

func (c *TTL[V]) generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// setIfGen stores v only when key has not been invalidated since gen.
func (c *TTL[V]) setIfGen(key string, v V, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] == gen {
		c.items[key] = entry[V]{value: v, expires: c.now().Add(c.ttl)}
	}
}

// GetOrLoad returns the cached value or runs load once for all concurrent
// callers. Errors are returned to every waiting caller and never cached.
func (c *TTL[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (v V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		gen := c.generation(key)
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.setIfGen(key, v, gen)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, _ = res.(V)
	return v, false, nil
}

// Package coalesce provides a keyed cache that guarantees at most one
// in-flight fetch per key. Concurrent callers for a key that is being
// fetched wait for that fetch and all receive its result.
package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache memoizes successful fetches. Failures are handed to every waiting
// caller and then forgotten, so the next call fetches again.
type Cache[V any] struct {
	fetch func(ctx context.Context, key string) (V, error)
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[V]
	fetches int
}

type Option[V any] func(*Cache[V])

// WithTTL bounds how long a value is served before it is fetched again.
// Zero, the default, keeps values for the life of the cache.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) { c.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New builds a cache over fetch. fetch runs on a context detached from any
// single caller, so one impatient caller cannot fail the fetch for the rest.
func New[V any](fetch func(ctx context.Context, key string) (V, error), opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		fetch:   fetch,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, fetching it if needed. If ctx ends
// first Get returns ctx.Err(); the fetch itself keeps running and still
// populates the cache.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// a flight that finished between lookup and DoChan already stored it
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		c.mu.Lock()
		c.fetches++
		c.mu.Unlock()

		v, err := c.fetch(context.WithoutCancel(ctx), key)
		if err != nil {
			return v, err
		}

		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, fetchedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Fetch is the callback form of Get. completion runs on its own goroutine.
func (c *Cache[V]) Fetch(ctx context.Context, key string, completion func(V, error)) {
	go func() {
		completion(c.Get(ctx, key))
	}()
}

// Invalidate drops key so the next Get fetches it again. A fetch already
// in flight is not affected.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every cached value.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Fetches reports how many times the underlying fetch was started.
func (c *Cache[V]) Fetches() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return e.value, false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

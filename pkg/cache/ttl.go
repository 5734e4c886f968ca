package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/metric"
)

// ErrInvalidKey is returned by Set for an empty key
var ErrInvalidKey = errors.New("cache key must not be empty")

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a cache whose entries expire ttl after they were last set.
type TTL[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]entry[V]
	now   func() time.Time

	metrics *cacheMetrics

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// HitRatio returns hits over lookups, 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Option configures a TTL cache
type Option[V any] func(*options)

type options struct {
	registry *metric.MetricsRegistry
	name     string
	now      func() time.Time
}

// WithMetrics exports the cache counters labelled with name. A nil registry
// or empty name is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(o *options) {
		if registry != nil && name != "" {
			o.registry = registry
			o.name = name
		}
	}
}

// WithClock replaces time.Now when computing expiry
func WithClock[V any](now func() time.Time) Option[V] {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTL creates a cache with the given entry lifetime.
func NewTTL[V any](ttl time.Duration, opts ...Option[V]) (*TTL[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.New("ttl must be positive"), "cache", "NewTTL", "check ttl")
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &TTL[V]{
		ttl:   ttl,
		items: make(map[string]entry[V]),
		now:   o.now,
	}
	if o.registry != nil {
		m, err := newCacheMetrics(o.registry, o.name)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewTTL", "metrics registration")
		}
		c.metrics = m
	}
	return c, nil
}

// Get returns the value for key unless it is missing or expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		c.metrics.recordHit()
		return e.value, true
	}

	if ok {
		c.mu.Lock()
		if cur, still := c.items[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.items, key)
			c.evictions.Add(1)
			c.metrics.recordEviction(len(c.items))
		}
		c.mu.Unlock()
	}

	c.misses.Add(1)
	c.metrics.recordMiss()
	var zero V
	return zero, false
}

// Set stores value under key and restarts its lifetime.
func (c *TTL[V]) Set(key string, value V) error {
	if key == "" {
		return ErrInvalidKey
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.setSize(size)
	return nil
}

// Delete removes key. It reports whether the key was present.
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	_, ok := c.items[key]
	delete(c.items, key)
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.setSize(size)
	return ok
}

// Clear removes every entry
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.mu.Unlock()
	c.metrics.setSize(0)
}

// Purge removes expired entries and returns how many were removed.
func (c *TTL[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		for i := 0; i < removed; i++ {
			c.metrics.recordEviction(size)
		}
	}
	return removed
}

// Len returns the number of entries, expired ones included until they are
// evicted.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns the current counters
func (c *TTL[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
	}
}

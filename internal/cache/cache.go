// Package cache provides the in-process, time-bounded read-through cache
// that sits in front of the profile store.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFillHorizon bounds how long a Stamp stays usable for a fill.
const DefaultFillHorizon = 2 * time.Minute

// Config configures a Cache. Zero values pick sensible defaults.
type Config struct {
	// Name labels the metrics of this cache.
	Name string
	// Now replaces time.Now, mostly in tests.
	Now func() time.Time
	// FillHorizon is how old a Stamp may be before SetIfUnchanged refuses it.
	FillHorizon time.Duration
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Stamp captures the cache's invalidation sequence at the start of a fill.
type Stamp struct {
	seq uint64
	at  time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type invalidation struct {
	seq uint64
	at  time.Time
}

// Cache is a mutex-guarded TTL map. Expired entries are dropped lazily on
// access; Sweep or Run reclaim memory for keys that are never read again.
//
// Besides plain Set, the cache supports stamped fills: a reader takes a Stamp
// before loading from the backing store and stores the result with
// SetIfUnchanged, which refuses the value if the key was invalidated after
// the Stamp was taken.
type Cache[K comparable, V any] struct {
	mu            sync.Mutex
	entries       map[K]entry[V]
	invalidations map[K]invalidation
	seq           uint64

	clone   func(V) V
	now     func() time.Time
	horizon time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// New builds a cache. clone, when non-nil, copies values on the way in and
// out so callers never share mutable state with the cache.
func New[K comparable, V any](cfg Config, clone func(V) V) *Cache[K, V] {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FillHorizon <= 0 {
		cfg.FillHorizon = DefaultFillHorizon
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache[K, V]{
		entries:       map[K]entry[V]{},
		invalidations: map[K]invalidation{},
		clone:         clone,
		now:           cfg.Now,
		horizon:       cfg.FillHorizon,
		logger:        cfg.Logger.With("cache", cfg.Name),
		metrics:       cfg.Metrics,
	}
}

// Get returns the live value for key. An expired entry is evicted and
// reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.mu.Unlock()
		c.metrics.eviction()
		c.metrics.miss()
		return zero, false
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.miss()
		return zero, false
	}
	value, err := c.copy(e.value)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "key", fmt.Sprint(key), "error", err)
		c.metrics.miss()
		return zero, false
	}
	c.metrics.hit()
	return value, true
}

// Set stores value until now+ttl, replacing any previous entry. A
// non-positive ttl removes the key instead.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.set(key, value, ttl, nil)
}

// Stamp marks the start of a fill for use with SetIfUnchanged.
func (c *Cache[K, V]) Stamp() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stamp{seq: c.seq, at: c.now()}
}

// SetIfUnchanged stores value like Set unless key was invalidated after
// stamp was taken, or stamp is older than the fill horizon. It reports
// whether the value was stored.
func (c *Cache[K, V]) SetIfUnchanged(key K, value V, ttl time.Duration, stamp Stamp) bool {
	return c.set(key, value, ttl, &stamp)
}

func (c *Cache[K, V]) set(key K, value V, ttl time.Duration, stamp *Stamp) bool {
	if ttl <= 0 {
		c.Invalidate(key)
		return false
	}
	stored, err := c.copy(value)
	if err != nil {
		c.logger.Warn("cache write failed, skipping", "key", fmt.Sprint(key), "error", err)
		return false
	}

	now := c.now()
	c.mu.Lock()
	if stamp != nil {
		if now.Sub(stamp.at) > c.horizon {
			c.mu.Unlock()
			c.metrics.rejectedFill()
			return false
		}
		if inv, ok := c.invalidations[key]; ok && inv.seq > stamp.seq {
			c.mu.Unlock()
			c.metrics.rejectedFill()
			return false
		}
	}
	c.entries[key] = entry[V]{value: stored, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	c.metrics.set()
	return true
}

// Invalidate drops key. It is a no-op for absent keys.
func (c *Cache[K, V]) Invalidate(key K) {
	now := c.now()
	c.mu.Lock()
	c.seq++
	delete(c.entries, key)
	c.invalidations[key] = invalidation{seq: c.seq, at: now}
	c.mu.Unlock()
	c.metrics.invalidation()
}

// Len reports the number of entries held, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries and invalidation marks older than the fill
// horizon. It returns the number of entries evicted.
func (c *Cache[K, V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	evicted := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	for key, inv := range c.invalidations {
		if now.Sub(inv.at) > c.horizon {
			delete(c.invalidations, key)
		}
	}
	c.mu.Unlock()
	for i := 0; i < evicted; i++ {
		c.metrics.eviction()
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (c *Cache[K, V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache sweep", "evicted", n)
			}
		}
	}
}

func (c *Cache[K, V]) copy(value V) (out V, err error) {
	if c.clone == nil {
		return value, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clone panicked: %v", r)
		}
	}()
	return c.clone(value), nil
}

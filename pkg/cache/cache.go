// Package cache provides the typed read-through cache abstraction used in
// front of the default object access permission store, with an in-memory
// LRU implementation and a Redis implementation.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Cache is a typed key-value cache. Get returns ok=false on a miss; a miss
// is not an error. Implementations must make Put atomic per key: a reader
// never observes a partially written entry.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Put(ctx context.Context, key string, value V) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

// Stats reports hit/miss counters for a cache instance.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Config controls cache sizing and entry lifetime.
type Config struct {
	// MaxEntries bounds the in-memory cache; ignored by the Redis backend.
	MaxEntries int

	// TTL is the entry lifetime. Entries are invalidated explicitly on
	// every write, so the TTL is a safety net, not the consistency
	// mechanism.
	TTL time.Duration
}

// DefaultConfig returns the sizing used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 2048,
		TTL:        10 * time.Minute,
	}
}

// counters tracks hits and misses without locking.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) stats() Stats {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

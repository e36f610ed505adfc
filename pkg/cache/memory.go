package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process Cache backed by an expirable LRU. Entry writes
// are atomic per key because values are stored whole; cross-key consistency
// is not promised and not needed.
type Memory[V any] struct {
	cache    *lru.LRU[string, V]
	counters counters
}

// NewMemory creates an in-memory cache with the given sizing.
func NewMemory[V any](cfg Config) *Memory[V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	return &Memory[V]{
		cache: lru.NewLRU[string, V](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// Get returns the cached value for key, if present and not expired.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	value, ok := m.cache.Get(key)
	if !ok {
		m.counters.miss()
		var zero V
		return zero, false, nil
	}
	m.counters.hit()
	return value, true, nil
}

// Put stores value under key, replacing any existing entry.
func (m *Memory[V]) Put(_ context.Context, key string, value V) error {
	m.cache.Add(key, value)
	return nil
}

// Invalidate removes the entry for key. Removing a missing key is a no-op.
func (m *Memory[V]) Invalidate(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Stats returns hit/miss counters.
func (m *Memory[V]) Stats() Stats {
	return m.counters.stats()
}

// Close purges all entries.
func (m *Memory[V]) Close() error {
	m.cache.Purge()
	return nil
}

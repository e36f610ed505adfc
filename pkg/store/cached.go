package store

import (
	"context"
	"fmt"

	"github.com/stelae/stelae/pkg/cache"
)

// CachedDOAPStore is a read-through cache in front of a DOAPStore. Default
// object access lookups run on every resource and value creation, which
// makes them the hot path; administrative lookups do not get a cache.
//
// The cache is owned here, not by callers, so an invalidation can never be
// forgotten at a call site: Create and Update maintain the cache as part of
// the same logical operation. The backing store always wins on
// disagreement; every store read overwrites the cache entry.
type CachedDOAPStore struct {
	backing DOAPStore
	cache   cache.Cache[*DefaultObjectAccessPermission]
}

// NewCachedDOAPStore wraps backing with the given cache.
func NewCachedDOAPStore(backing DOAPStore, c cache.Cache[*DefaultObjectAccessPermission]) *CachedDOAPStore {
	return &CachedDOAPStore{backing: backing, cache: c}
}

// Get probes the cache first and falls back to the backing store, caching
// hits. Absent records are not cached: the next read retries the store.
func (s *CachedDOAPStore) Get(ctx context.Context, project string, sel Selector) (*DefaultObjectAccessPermission, error) {
	key := sel.CacheKey(project)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	d, err := s.backing.Get(ctx, project, sel)
	if err != nil {
		return nil, err
	}
	if d != nil {
		if err := s.cache.Put(ctx, key, d); err != nil {
			return nil, fmt.Errorf("failed to cache default object access permission: %w", err)
		}
	}
	return d, nil
}

// GetByIRI bypasses the cache; IRI reads are not on the resolution path.
func (s *CachedDOAPStore) GetByIRI(ctx context.Context, iri string) (*DefaultObjectAccessPermission, error) {
	return s.backing.GetByIRI(ctx, iri)
}

// GetForProject bypasses the cache; listing is an audit operation.
func (s *CachedDOAPStore) GetForProject(ctx context.Context, project string) ([]*DefaultObjectAccessPermission, error) {
	return s.backing.GetForProject(ctx, project)
}

// Create writes through to the backing store and populates the cache entry
// for the new record's key.
func (s *CachedDOAPStore) Create(ctx context.Context, d *DefaultObjectAccessPermission) error {
	if err := s.backing.Create(ctx, d); err != nil {
		return err
	}
	return s.cache.Put(ctx, d.Selector.CacheKey(d.Project), d)
}

// Update writes through to the backing store, invalidates the entry for the
// record's previous selector, and populates the entry for the current one.
// A stale entry surviving an update would be embedded into newly created
// data, so both steps are part of the update, not best-effort.
func (s *CachedDOAPStore) Update(ctx context.Context, iri string, patch DOAPPatch) (*DefaultObjectAccessPermission, error) {
	previous, err := s.backing.GetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}

	updated, err := s.backing.Update(ctx, iri, patch)
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.Selector != updated.Selector {
		if err := s.cache.Invalidate(ctx, previous.Selector.CacheKey(previous.Project)); err != nil {
			return nil, fmt.Errorf("failed to invalidate cache entry: %w", err)
		}
	}
	if err := s.cache.Put(ctx, updated.Selector.CacheKey(updated.Project), updated); err != nil {
		return nil, fmt.Errorf("failed to refresh cache entry: %w", err)
	}
	return updated, nil
}

package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelae/stelae/pkg/cache"
	"github.com/stelae/stelae/pkg/permission"
)

// countingDOAPStore wraps MemoryDOAPStore and counts selector lookups.
type countingDOAPStore struct {
	*MemoryDOAPStore
	mu   sync.Mutex
	gets int
}

func (c *countingDOAPStore) Get(ctx context.Context, project string, sel Selector) (*DefaultObjectAccessPermission, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.MemoryDOAPStore.Get(ctx, project, sel)
}

func (c *countingDOAPStore) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func newCachedStore(t *testing.T) (*CachedDOAPStore, *countingDOAPStore) {
	t.Helper()
	backing := &countingDOAPStore{MemoryDOAPStore: NewMemoryDOAPStore()}
	c := cache.NewMemory[*DefaultObjectAccessPermission](cache.DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return NewCachedDOAPStore(backing, c), backing
}

func TestCachedGetReadThrough(t *testing.T) {
	s, backing := newCachedStore(t)
	ctx := context.Background()
	sel := ForGroup("g")

	require.NoError(t, backing.MemoryDOAPStore.Create(ctx, doapFixture("iri-1", sel)))

	// first read hits the backing store, second is served from cache
	first, err := s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, backing.getCount())

	second, err := s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 1, backing.getCount())
	assert.Equal(t, first.IRI, second.IRI)
}

func TestCachedGetDoesNotCacheAbsence(t *testing.T) {
	s, backing := newCachedStore(t)
	ctx := context.Background()
	sel := ForGroup("g")

	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, backing.getCount())

	// absence was not cached; the next read retries the store
	_, err = s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.getCount())
}

func TestCachedCreatePopulates(t *testing.T) {
	s, backing := newCachedStore(t)
	ctx := context.Background()
	sel := ForGroup("g")

	require.NoError(t, s.Create(ctx, doapFixture("iri-1", sel)))

	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, backing.getCount())
}

func TestCachedUpdateRefreshesEntry(t *testing.T) {
	s, _ := newCachedStore(t)
	ctx := context.Background()
	sel := ForGroup("g")

	d := doapFixture("iri-1", sel)
	require.NoError(t, s.Create(ctx, d))

	newPerms := permission.NewSet(permission.ObjectAccess(permission.Modify, "http://stelae.io/groups#ProjectMember"))
	_, err := s.Update(ctx, "iri-1", DOAPPatch{Permissions: &newPerms})
	require.NoError(t, err)

	got, err := s.Get(ctx, d.Project, sel)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Permissions.Equal(newPerms))
}

func TestCachedUpdateInvalidatesOldSelectorKey(t *testing.T) {
	s, backing := newCachedStore(t)
	ctx := context.Background()
	oldSel := ForGroup("g")
	newSel := ForResourceClass("rc")

	require.NoError(t, s.Create(ctx, doapFixture("iri-1", oldSel)))

	_, err := s.Update(ctx, "iri-1", DOAPPatch{Selector: &newSel})
	require.NoError(t, err)

	// old selector no longer resolves, and its stale cache entry is gone
	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", oldSel)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, backing.getCount())

	// new selector is served from the refreshed cache entry
	got, err = s.Get(ctx, "http://stelae.io/projects/alpha", newSel)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, backing.getCount())
}

func TestCachedInterleavedUpdates(t *testing.T) {
	s, _ := newCachedStore(t)
	ctx := context.Background()
	selA := ForGroup("a")
	selB := ForGroup("b")

	require.NoError(t, s.Create(ctx, doapFixture("iri-a", selA)))
	require.NoError(t, s.Create(ctx, doapFixture("iri-b", selB)))

	// move a -> c, then b -> a; each read sees the latest state
	selC := ForGroup("c")
	_, err := s.Update(ctx, "iri-a", DOAPPatch{Selector: &selC})
	require.NoError(t, err)
	_, err = s.Update(ctx, "iri-b", DOAPPatch{Selector: &selA})
	require.NoError(t, err)

	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", selA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "iri-b", got.IRI)

	got, err = s.Get(ctx, "http://stelae.io/projects/alpha", selC)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "iri-a", got.IRI)
}

func TestCachedRandomizedInterleaving(t *testing.T) {
	s, _ := newCachedStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	// a handful of records on distinct selector keys
	const records = 8
	selectors := make([]Selector, records)
	expected := make([]permission.Set, records)
	for i := 0; i < records; i++ {
		selectors[i] = ForGroup(fmt.Sprintf("http://stelae.io/groups/g%d", i))
		d := doapFixture(fmt.Sprintf("iri-%d", i), selectors[i])
		require.NoError(t, s.Create(ctx, d))
		expected[i] = d.Permissions
	}

	levels := []permission.Level{
		permission.RestrictedView, permission.View, permission.Modify,
		permission.Delete, permission.ChangeRights,
	}

	// interleave updates and reads across random keys; every read must see
	// the latest write for its key, never a stale cache entry
	for step := 0; step < 500; step++ {
		i := rng.Intn(records)
		if rng.Intn(2) == 0 {
			perms := permission.NewSet(permission.ObjectAccess(levels[rng.Intn(len(levels))], selectors[i].Group))
			_, err := s.Update(ctx, fmt.Sprintf("iri-%d", i), DOAPPatch{Permissions: &perms})
			require.NoError(t, err)
			expected[i] = perms
		}

		got, err := s.Get(ctx, "http://stelae.io/projects/alpha", selectors[i])
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, fmt.Sprintf("iri-%d", i), got.IRI)
		require.True(t, got.Permissions.Equal(expected[i]),
			"step %d: key %d served stale permissions", step, i)
	}

	// final sweep: every key still serves its latest state
	for i := 0; i < records; i++ {
		got, err := s.Get(ctx, "http://stelae.io/projects/alpha", selectors[i])
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Permissions.Equal(expected[i]))
	}
}

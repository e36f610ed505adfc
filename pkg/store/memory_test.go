package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/permission"
)

func adminFixture(iri string) *AdministrativePermission {
	return &AdministrativePermission{
		IRI:         iri,
		Project:     "http://stelae.io/projects/alpha",
		Group:       "http://stelae.io/groups#ProjectMember",
		Permissions: permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, "")),
	}
}

func doapFixture(iri string, sel Selector) *DefaultObjectAccessPermission {
	return &DefaultObjectAccessPermission{
		IRI:         iri,
		Project:     "http://stelae.io/projects/alpha",
		Selector:    sel,
		Permissions: permission.NewSet(permission.ObjectAccess(permission.View, "http://stelae.io/groups#ProjectMember")),
	}
}

func TestMemoryAdministrativeStoreCRUD(t *testing.T) {
	s := NewMemoryAdministrativeStore()
	ctx := context.Background()

	// absent is (nil, nil), not an error
	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", "g")
	require.NoError(t, err)
	assert.Nil(t, got)

	ap := adminFixture("iri-1")
	require.NoError(t, s.Create(ctx, ap))
	assert.False(t, ap.CreatedAt.IsZero())

	got, err = s.Get(ctx, ap.Project, ap.Group)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "iri-1", got.IRI)

	byIRI, err := s.GetByIRI(ctx, "iri-1")
	require.NoError(t, err)
	require.NotNil(t, byIRI)

	list, err := s.GetForProject(ctx, ap.Project)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// duplicate (project, group) conflicts
	dup := adminFixture("iri-2")
	assert.ErrorIs(t, s.Create(ctx, dup), errs.ErrConflict)
}

func TestMemoryAdministrativeStoreUpdate(t *testing.T) {
	s := NewMemoryAdministrativeStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, adminFixture("iri-1")))

	newGroup := "http://stelae.io/groups/editors"
	updated, err := s.Update(ctx, "iri-1", AdminPatch{Group: &newGroup})
	require.NoError(t, err)
	assert.Equal(t, newGroup, updated.Group)

	_, err = s.Update(ctx, "iri-1", AdminPatch{})
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	_, err = s.Update(ctx, "missing", AdminPatch{Group: &newGroup})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryAdministrativeStoreReturnsCopies(t *testing.T) {
	s := NewMemoryAdministrativeStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, adminFixture("iri-1")))

	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", "http://stelae.io/groups#ProjectMember")
	require.NoError(t, err)
	got.Group = "mutated"

	again, err := s.GetByIRI(ctx, "iri-1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Group)
}

func TestMemoryDOAPStoreCRUD(t *testing.T) {
	s := NewMemoryDOAPStore()
	ctx := context.Background()
	sel := ForGroup("http://stelae.io/groups#ProjectMember")

	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", sel)
	require.NoError(t, err)
	assert.Nil(t, got)

	d := doapFixture("iri-1", sel)
	require.NoError(t, s.Create(ctx, d))

	got, err = s.Get(ctx, d.Project, sel)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "iri-1", got.IRI)

	// same project, different selector is fine
	require.NoError(t, s.Create(ctx, doapFixture("iri-2", ForResourceClass("rc"))))

	// same (project, selector) conflicts
	assert.ErrorIs(t, s.Create(ctx, doapFixture("iri-3", sel)), errs.ErrConflict)

	list, err := s.GetForProject(ctx, d.Project)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryDOAPStoreUpdate(t *testing.T) {
	s := NewMemoryDOAPStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, doapFixture("iri-1", ForGroup("g"))))

	newSel := ForResourceClass("rc")
	updated, err := s.Update(ctx, "iri-1", DOAPPatch{Selector: &newSel})
	require.NoError(t, err)
	assert.Equal(t, SelectorResourceClass, updated.Selector.Kind())

	// invalid selector rejected
	bad := Selector{Group: "g", Property: "p"}
	_, err = s.Update(ctx, "iri-1", DOAPPatch{Selector: &bad})
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	_, err = s.Update(ctx, "iri-1", DOAPPatch{})
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	_, err = s.Update(ctx, "missing", DOAPPatch{Selector: &newSel})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryAdministrativeStoreUpdateRejectsKeyCollision(t *testing.T) {
	s := NewMemoryAdministrativeStore()
	ctx := context.Background()

	first := adminFixture("iri-1")
	require.NoError(t, s.Create(ctx, first))
	second := adminFixture("iri-2")
	second.Group = "http://stelae.io/groups/editors"
	require.NoError(t, s.Create(ctx, second))

	// repatching a record onto another record's (project, group) conflicts
	taken := first.Group
	_, err := s.Update(ctx, "iri-2", AdminPatch{Group: &taken})
	assert.ErrorIs(t, err, errs.ErrConflict)

	// patching to its own current group is not a collision
	own := second.Group
	updated, err := s.Update(ctx, "iri-2", AdminPatch{Group: &own})
	require.NoError(t, err)
	assert.Equal(t, own, updated.Group)

	// the colliding update must not have gone through
	got, err := s.GetByIRI(ctx, "iri-2")
	require.NoError(t, err)
	assert.Equal(t, own, got.Group)
}

func TestMemoryDOAPStoreUpdateRejectsKeyCollision(t *testing.T) {
	s := NewMemoryDOAPStore()
	ctx := context.Background()

	book := ForResourceClass("http://stelae.io/ontology/alpha#Book")
	page := ForResourceClass("http://stelae.io/ontology/alpha#Page")
	require.NoError(t, s.Create(ctx, doapFixture("iri-1", book)))
	require.NoError(t, s.Create(ctx, doapFixture("iri-2", page)))

	// repatching a selector onto another record's (project, selector) conflicts
	_, err := s.Update(ctx, "iri-2", DOAPPatch{Selector: &book})
	assert.ErrorIs(t, err, errs.ErrConflict)

	// exactly one record per key survives
	got, err := s.Get(ctx, "http://stelae.io/projects/alpha", book)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "iri-1", got.IRI)

	// a record may keep its own selector through a patch
	_, err = s.Update(ctx, "iri-2", DOAPPatch{Selector: &page})
	assert.NoError(t, err)
}

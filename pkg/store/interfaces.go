package store

import (
	"context"
)

// AdministrativeStore persists administrative permission records keyed by
// (project, group).
//
// Get returns (nil, nil) when no record exists for the key: an absent rule
// is an ordinary outcome on the resolution path, never an error. Update
// returns errs.ErrNotFound for an unknown IRI and errs.ErrBadRequest for a
// zero-field patch. Create returns errs.ErrConflict when a record already
// exists for the same key and must only be called while holding the
// mutation coordinator's creation lock.
type AdministrativeStore interface {
	Get(ctx context.Context, project, group string) (*AdministrativePermission, error)
	GetByIRI(ctx context.Context, iri string) (*AdministrativePermission, error)
	GetForProject(ctx context.Context, project string) ([]*AdministrativePermission, error)
	Create(ctx context.Context, ap *AdministrativePermission) error
	Update(ctx context.Context, iri string, patch AdminPatch) (*AdministrativePermission, error)
}

// DOAPStore persists default object access permission records keyed by
// (project, selector). Same contract shape as AdministrativeStore.
type DOAPStore interface {
	Get(ctx context.Context, project string, sel Selector) (*DefaultObjectAccessPermission, error)
	GetByIRI(ctx context.Context, iri string) (*DefaultObjectAccessPermission, error)
	GetForProject(ctx context.Context, project string) ([]*DefaultObjectAccessPermission, error)
	Create(ctx context.Context, d *DefaultObjectAccessPermission) error
	Update(ctx context.Context, iri string, patch DOAPPatch) (*DefaultObjectAccessPermission, error)
}

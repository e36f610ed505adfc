package store

import (
	"context"
	"sync"
	"time"

	"github.com/stelae/stelae/pkg/errs"
)

// MemoryAdministrativeStore is an in-memory AdministrativeStore. It backs
// single-node deployments without a database and most of the test suite.
type MemoryAdministrativeStore struct {
	mu    sync.RWMutex
	byIRI map[string]*AdministrativePermission
}

// NewMemoryAdministrativeStore creates an empty in-memory store.
func NewMemoryAdministrativeStore() *MemoryAdministrativeStore {
	return &MemoryAdministrativeStore{byIRI: make(map[string]*AdministrativePermission)}
}

func copyAdmin(ap *AdministrativePermission) *AdministrativePermission {
	out := *ap
	out.Permissions = append(out.Permissions[:0:0], ap.Permissions...)
	return &out
}

// Get returns the record for (project, group), or (nil, nil) when absent.
func (s *MemoryAdministrativeStore) Get(_ context.Context, project, group string) (*AdministrativePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ap := range s.byIRI {
		if ap.Project == project && ap.Group == group {
			return copyAdmin(ap), nil
		}
	}
	return nil, nil
}

// GetByIRI returns the record with the given IRI, or (nil, nil) when absent.
func (s *MemoryAdministrativeStore) GetByIRI(_ context.Context, iri string) (*AdministrativePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ap, ok := s.byIRI[iri]; ok {
		return copyAdmin(ap), nil
	}
	return nil, nil
}

// GetForProject returns every record of the project.
func (s *MemoryAdministrativeStore) GetForProject(_ context.Context, project string) ([]*AdministrativePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AdministrativePermission
	for _, ap := range s.byIRI {
		if ap.Project == project {
			out = append(out, copyAdmin(ap))
		}
	}
	return out, nil
}

// Create stores a new record, failing with Conflict when one already exists
// for the same (project, group).
func (s *MemoryAdministrativeStore) Create(_ context.Context, ap *AdministrativePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byIRI {
		if existing.Project == ap.Project && existing.Group == ap.Group {
			return errs.Conflict("administrative permission for (%s, %s)", ap.Project, ap.Group)
		}
	}
	now := time.Now().UTC()
	ap.CreatedAt = now
	ap.UpdatedAt = now
	s.byIRI[ap.IRI] = copyAdmin(ap)
	return nil
}

// Update applies a partial update to the record with the given IRI.
func (s *MemoryAdministrativeStore) Update(_ context.Context, iri string, patch AdminPatch) (*AdministrativePermission, error) {
	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.byIRI[iri]
	if !ok {
		return nil, errs.NotFound("administrative permission %s", iri)
	}
	if patch.Group != nil {
		for _, existing := range s.byIRI {
			if existing.IRI != iri && existing.Project == ap.Project && existing.Group == *patch.Group {
				return nil, errs.Conflict("administrative permission for (%s, %s)", ap.Project, *patch.Group)
			}
		}
		ap.Group = *patch.Group
	}
	if patch.Permissions != nil {
		ap.Permissions = append((*patch.Permissions)[:0:0], *patch.Permissions...)
	}
	ap.UpdatedAt = time.Now().UTC()
	return copyAdmin(ap), nil
}

// MemoryDOAPStore is an in-memory DOAPStore.
type MemoryDOAPStore struct {
	mu    sync.RWMutex
	byIRI map[string]*DefaultObjectAccessPermission
}

// NewMemoryDOAPStore creates an empty in-memory store.
func NewMemoryDOAPStore() *MemoryDOAPStore {
	return &MemoryDOAPStore{byIRI: make(map[string]*DefaultObjectAccessPermission)}
}

func copyDOAP(d *DefaultObjectAccessPermission) *DefaultObjectAccessPermission {
	out := *d
	out.Permissions = append(out.Permissions[:0:0], d.Permissions...)
	return &out
}

// Get returns the record for (project, selector), or (nil, nil) when absent.
func (s *MemoryDOAPStore) Get(_ context.Context, project string, sel Selector) (*DefaultObjectAccessPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.byIRI {
		if d.Project == project && d.Selector == sel {
			return copyDOAP(d), nil
		}
	}
	return nil, nil
}

// GetByIRI returns the record with the given IRI, or (nil, nil) when absent.
func (s *MemoryDOAPStore) GetByIRI(_ context.Context, iri string) (*DefaultObjectAccessPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.byIRI[iri]; ok {
		return copyDOAP(d), nil
	}
	return nil, nil
}

// GetForProject returns every record of the project.
func (s *MemoryDOAPStore) GetForProject(_ context.Context, project string) ([]*DefaultObjectAccessPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DefaultObjectAccessPermission
	for _, d := range s.byIRI {
		if d.Project == project {
			out = append(out, copyDOAP(d))
		}
	}
	return out, nil
}

// Create stores a new record, failing with Conflict when one already exists
// for the same (project, selector).
func (s *MemoryDOAPStore) Create(_ context.Context, d *DefaultObjectAccessPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byIRI {
		if existing.Project == d.Project && existing.Selector == d.Selector {
			return errs.Conflict("default object access permission for (%s, %s)", d.Project, d.Selector.Kind())
		}
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	s.byIRI[d.IRI] = copyDOAP(d)
	return nil
}

// Update applies a partial update to the record with the given IRI.
func (s *MemoryDOAPStore) Update(_ context.Context, iri string, patch DOAPPatch) (*DefaultObjectAccessPermission, error) {
	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byIRI[iri]
	if !ok {
		return nil, errs.NotFound("default object access permission %s", iri)
	}
	if patch.Selector != nil {
		if err := patch.Selector.Validate(); err != nil {
			return nil, err
		}
		for _, existing := range s.byIRI {
			if existing.IRI != iri && existing.Project == d.Project && existing.Selector == *patch.Selector {
				return nil, errs.Conflict("default object access permission for (%s, %s)", d.Project, patch.Selector.Kind())
			}
		}
		d.Selector = *patch.Selector
	}
	if patch.Permissions != nil {
		d.Permissions = append((*patch.Permissions)[:0:0], *patch.Permissions...)
	}
	d.UpdatedAt = time.Now().UTC()
	return copyDOAP(d), nil
}

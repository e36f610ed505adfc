// Package postgres implements the permission stores and the membership
// provider on PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/store"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// AdministrativeStore is the PostgreSQL store.AdministrativeStore.
type AdministrativeStore struct {
	db *sql.DB
}

// NewAdministrativeStore creates a store over db.
func NewAdministrativeStore(db *sql.DB) *AdministrativeStore {
	return &AdministrativeStore{db: db}
}

const adminColumns = `iri, project_iri, group_iri, permissions, created_at, updated_at`

func scanAdmin(scanner interface{ Scan(dest ...interface{}) error }) (*store.AdministrativePermission, error) {
	var ap store.AdministrativePermission
	var permissionsJSON []byte
	err := scanner.Scan(
		&ap.IRI,
		&ap.Project,
		&ap.Group,
		&permissionsJSON,
		&ap.CreatedAt,
		&ap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(permissionsJSON, &ap.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for %s: %w", ap.IRI, err)
	}
	return &ap, nil
}

// Get returns the record for (project, group), or (nil, nil) when absent.
func (s *AdministrativeStore) Get(ctx context.Context, project, group string) (*store.AdministrativePermission, error) {
	query := `SELECT ` + adminColumns + ` FROM administrative_permissions WHERE project_iri = $1 AND group_iri = $2`
	ap, err := scanAdmin(s.db.QueryRowContext(ctx, query, project, group))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get administrative permission: %w", err)
	}
	return ap, nil
}

// GetByIRI returns the record with the given IRI, or (nil, nil) when absent.
func (s *AdministrativeStore) GetByIRI(ctx context.Context, iri string) (*store.AdministrativePermission, error) {
	query := `SELECT ` + adminColumns + ` FROM administrative_permissions WHERE iri = $1`
	ap, err := scanAdmin(s.db.QueryRowContext(ctx, query, iri))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get administrative permission: %w", err)
	}
	return ap, nil
}

// GetForProject returns every record of the project.
func (s *AdministrativeStore) GetForProject(ctx context.Context, project string) ([]*store.AdministrativePermission, error) {
	query := `SELECT ` + adminColumns + ` FROM administrative_permissions WHERE project_iri = $1 ORDER BY group_iri ASC`
	rows, err := s.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrative permissions: %w", err)
	}
	defer rows.Close()

	var out []*store.AdministrativePermission
	for rows.Next() {
		ap, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan administrative permission: %w", err)
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}

// Create inserts a new record; the (project, group) unique constraint is
// the backstop behind the coordinator's creation lock.
func (s *AdministrativeStore) Create(ctx context.Context, ap *store.AdministrativePermission) error {
	permissionsJSON, err := json.Marshal(ap.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO administrative_permissions (iri, project_iri, group_iri, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query, ap.IRI, ap.Project, ap.Group, permissionsJSON, now, now)
	if isUniqueViolation(err) {
		return errs.Conflict("administrative permission for (%s, %s)", ap.Project, ap.Group)
	}
	if err != nil {
		return fmt.Errorf("failed to create administrative permission: %w", err)
	}
	ap.CreatedAt = now
	ap.UpdatedAt = now
	return nil
}

// Update applies a partial update to the record with the given IRI.
func (s *AdministrativeStore) Update(ctx context.Context, iri string, patch store.AdminPatch) (*store.AdministrativePermission, error) {
	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}

	existing, err := s.GetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound("administrative permission %s", iri)
	}

	if patch.Group != nil {
		existing.Group = *patch.Group
	}
	if patch.Permissions != nil {
		existing.Permissions = *patch.Permissions
	}

	permissionsJSON, err := json.Marshal(existing.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE administrative_permissions
		SET group_iri = $1, permissions = $2, updated_at = $3
		WHERE iri = $4
	`
	existing.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query, existing.Group, permissionsJSON, existing.UpdatedAt, iri)
	if isUniqueViolation(err) {
		return nil, errs.Conflict("administrative permission for (%s, %s)", existing.Project, existing.Group)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update administrative permission: %w", err)
	}
	return existing, nil
}

// DOAPStore is the PostgreSQL store.DOAPStore.
type DOAPStore struct {
	db *sql.DB
}

// NewDOAPStore creates a store over db.
func NewDOAPStore(db *sql.DB) *DOAPStore {
	return &DOAPStore{db: db}
}

const doapColumns = `iri, project_iri, group_iri, resource_class_iri, property_iri, permissions, created_at, updated_at`

func scanDOAP(scanner interface{ Scan(dest ...interface{}) error }) (*store.DefaultObjectAccessPermission, error) {
	var d store.DefaultObjectAccessPermission
	var group, resourceClass, property sql.NullString
	var permissionsJSON []byte
	err := scanner.Scan(
		&d.IRI,
		&d.Project,
		&group,
		&resourceClass,
		&property,
		&permissionsJSON,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Selector = store.Selector{
		Group:         group.String,
		ResourceClass: resourceClass.String,
		Property:      property.String,
	}
	if d.Selector.Kind() == "" {
		return nil, errs.InconsistentState("stored record %s has an invalid selector", d.IRI)
	}
	if err := json.Unmarshal(permissionsJSON, &d.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for %s: %w", d.IRI, err)
	}
	return &d, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Get returns the record for (project, selector), or (nil, nil) when absent.
func (s *DOAPStore) Get(ctx context.Context, project string, sel store.Selector) (*store.DefaultObjectAccessPermission, error) {
	query := `
		SELECT ` + doapColumns + `
		FROM default_object_access_permissions
		WHERE project_iri = $1
		  AND COALESCE(group_iri, '') = $2
		  AND COALESCE(resource_class_iri, '') = $3
		  AND COALESCE(property_iri, '') = $4
	`
	d, err := scanDOAP(s.db.QueryRowContext(ctx, query, project, sel.Group, sel.ResourceClass, sel.Property))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default object access permission: %w", err)
	}
	return d, nil
}

// GetByIRI returns the record with the given IRI, or (nil, nil) when absent.
func (s *DOAPStore) GetByIRI(ctx context.Context, iri string) (*store.DefaultObjectAccessPermission, error) {
	query := `SELECT ` + doapColumns + ` FROM default_object_access_permissions WHERE iri = $1`
	d, err := scanDOAP(s.db.QueryRowContext(ctx, query, iri))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default object access permission: %w", err)
	}
	return d, nil
}

// GetForProject returns every record of the project.
func (s *DOAPStore) GetForProject(ctx context.Context, project string) ([]*store.DefaultObjectAccessPermission, error) {
	query := `SELECT ` + doapColumns + ` FROM default_object_access_permissions WHERE project_iri = $1 ORDER BY iri ASC`
	rows, err := s.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list default object access permissions: %w", err)
	}
	defer rows.Close()

	var out []*store.DefaultObjectAccessPermission
	for rows.Next() {
		d, err := scanDOAP(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan default object access permission: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create inserts a new record; the (project, selector) unique constraint is
// the backstop behind the coordinator's creation lock.
func (s *DOAPStore) Create(ctx context.Context, d *store.DefaultObjectAccessPermission) error {
	permissionsJSON, err := json.Marshal(d.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO default_object_access_permissions
			(iri, project_iri, group_iri, resource_class_iri, property_iri, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		d.IRI, d.Project,
		nullable(d.Selector.Group), nullable(d.Selector.ResourceClass), nullable(d.Selector.Property),
		permissionsJSON, now, now,
	)
	if isUniqueViolation(err) {
		return errs.Conflict("default object access permission for (%s, %s)", d.Project, d.Selector.Kind())
	}
	if err != nil {
		return fmt.Errorf("failed to create default object access permission: %w", err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// Update applies a partial update to the record with the given IRI.
func (s *DOAPStore) Update(ctx context.Context, iri string, patch store.DOAPPatch) (*store.DefaultObjectAccessPermission, error) {
	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}

	existing, err := s.GetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound("default object access permission %s", iri)
	}

	if patch.Selector != nil {
		if err := patch.Selector.Validate(); err != nil {
			return nil, err
		}
		existing.Selector = *patch.Selector
	}
	if patch.Permissions != nil {
		existing.Permissions = *patch.Permissions
	}

	permissionsJSON, err := json.Marshal(existing.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE default_object_access_permissions
		SET group_iri = $1, resource_class_iri = $2, property_iri = $3, permissions = $4, updated_at = $5
		WHERE iri = $6
	`
	existing.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		nullable(existing.Selector.Group), nullable(existing.Selector.ResourceClass), nullable(existing.Selector.Property),
		permissionsJSON, existing.UpdatedAt, iri,
	)
	if isUniqueViolation(err) {
		return nil, errs.Conflict("default object access permission for (%s, %s)", existing.Project, existing.Selector.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update default object access permission: %w", err)
	}
	return existing, nil
}

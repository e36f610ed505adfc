package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the permission store schema in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create administrative_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS administrative_permissions (
					iri VARCHAR(255) PRIMARY KEY,
					project_iri VARCHAR(255) NOT NULL,
					group_iri VARCHAR(255) NOT NULL,
					permissions JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(project_iri, group_iri)
				);

				CREATE INDEX IF NOT EXISTS idx_admin_perms_project ON administrative_permissions(project_iri);
			`,
		},
		{
			Version:     2,
			Description: "Create default_object_access_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS default_object_access_permissions (
					iri VARCHAR(255) PRIMARY KEY,
					project_iri VARCHAR(255) NOT NULL,
					group_iri VARCHAR(255),
					resource_class_iri VARCHAR(255),
					property_iri VARCHAR(255),
					permissions JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				-- selector columns are nullable, so the one-record-per-selector
				-- rule needs an expression index rather than a UNIQUE constraint
				CREATE UNIQUE INDEX IF NOT EXISTS idx_doap_selector_unique
					ON default_object_access_permissions (project_iri, COALESCE(group_iri, ''), COALESCE(resource_class_iri, ''), COALESCE(property_iri, ''));

				CREATE INDEX IF NOT EXISTS idx_doap_project ON default_object_access_permissions(project_iri);
			`,
		},
		{
			Version:     3,
			Description: "Create membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_project_memberships (
					user_iri VARCHAR(255) NOT NULL,
					project_iri VARCHAR(255) NOT NULL,
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					PRIMARY KEY (user_iri, project_iri)
				);

				CREATE TABLE IF NOT EXISTS custom_groups (
					group_iri VARCHAR(255) PRIMARY KEY,
					project_iri VARCHAR(255) NOT NULL
				);

				CREATE TABLE IF NOT EXISTS user_group_memberships (
					user_iri VARCHAR(255) NOT NULL,
					group_iri VARCHAR(255) NOT NULL REFERENCES custom_groups(group_iri) ON DELETE CASCADE,
					PRIMARY KEY (user_iri, group_iri)
				);

				CREATE TABLE IF NOT EXISTS system_admins (
					user_iri VARCHAR(255) PRIMARY KEY
				);

				CREATE INDEX IF NOT EXISTS idx_user_groups_user ON user_group_memberships(user_iri);
			`,
		},
		{
			Version:     4,
			Description: "Create permission_audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permission_audit_events (
					id BIGSERIAL PRIMARY KEY,
					occurred_at TIMESTAMP NOT NULL DEFAULT NOW(),
					event_type VARCHAR(64) NOT NULL,
					outcome VARCHAR(16) NOT NULL,
					actor_iri VARCHAR(255) NOT NULL,
					project_iri VARCHAR(255) NOT NULL,
					permission_iri VARCHAR(255),
					request_id VARCHAR(64),
					detail TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_audit_project ON permission_audit_events(project_iri, occurred_at);
				CREATE INDEX IF NOT EXISTS idx_audit_actor ON permission_audit_events(actor_iri, occurred_at);
			`,
		},
	}
}

// RunMigrations applies every migration inside the schema_migrations
// bookkeeping table. Safe to call on every start.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

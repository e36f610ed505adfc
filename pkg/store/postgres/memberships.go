package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stelae/stelae/pkg/groups"
)

// MembershipProvider reads a user's stored memberships from the membership
// tables. It implements groups.MembershipProvider for deployments where the
// user registry lives in the same database; platforms with a separate user
// service supply their own implementation.
type MembershipProvider struct {
	db *sql.DB
}

// NewMembershipProvider creates a provider over db.
func NewMembershipProvider(db *sql.DB) *MembershipProvider {
	return &MembershipProvider{db: db}
}

// MembershipsFor returns everything stored about userIRI. A user with no
// rows anywhere gets empty memberships, not an error.
func (p *MembershipProvider) MembershipsFor(ctx context.Context, userIRI string) (*groups.Memberships, error) {
	m := &groups.Memberships{}

	rows, err := p.db.QueryContext(ctx, `
		SELECT project_iri, is_admin
		FROM user_project_memberships
		WHERE user_iri = $1
		ORDER BY project_iri ASC
	`, userIRI)
	if err != nil {
		return nil, fmt.Errorf("failed to query project memberships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var project string
		var isAdmin bool
		if err := rows.Scan(&project, &isAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan project membership: %w", err)
		}
		m.Projects = append(m.Projects, project)
		if isAdmin {
			m.AdminOf = append(m.AdminOf, project)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project memberships: %w", err)
	}

	groupRows, err := p.db.QueryContext(ctx, `
		SELECT ugm.group_iri, cg.project_iri
		FROM user_group_memberships ugm
		JOIN custom_groups cg ON cg.group_iri = ugm.group_iri
		WHERE ugm.user_iri = $1
		ORDER BY ugm.group_iri ASC
	`, userIRI)
	if err != nil {
		return nil, fmt.Errorf("failed to query group memberships: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var ref groups.GroupRef
		if err := groupRows.Scan(&ref.Group, &ref.Project); err != nil {
			return nil, fmt.Errorf("failed to scan group membership: %w", err)
		}
		m.ExplicitGroups = append(m.ExplicitGroups, ref)
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group memberships: %w", err)
	}

	err = p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM system_admins WHERE user_iri = $1)`, userIRI,
	).Scan(&m.IsSystemAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to query system admin flag: %w", err)
	}

	return m, nil
}

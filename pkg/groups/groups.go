// Package groups defines the built-in groups of the Stelae platform and
// materializes a user's effective group memberships per project.
package groups

import (
	"context"

	"github.com/stelae/stelae/pkg/errs"
)

// Built-in group IRIs. These are never stored as explicit memberships; they
// are materialized from project membership, admin status, or the state of
// the request itself.
const (
	SystemAdmin   = "http://stelae.io/groups#SystemAdmin"
	ProjectAdmin  = "http://stelae.io/groups#ProjectAdmin"
	ProjectMember = "http://stelae.io/groups#ProjectMember"
	KnownUser     = "http://stelae.io/groups#KnownUser"
	UnknownUser   = "http://stelae.io/groups#UnknownUser"
	Creator       = "http://stelae.io/groups#Creator"
)

// SystemProject is the sentinel project IRI that system-wide records,
// including the SystemAdmin membership and system-level default object
// access permissions, are attached to.
const SystemProject = "http://stelae.io/projects#System"

var builtIn = map[string]bool{
	SystemAdmin:   true,
	ProjectAdmin:  true,
	ProjectMember: true,
	KnownUser:     true,
	UnknownUser:   true,
	Creator:       true,
}

// IsBuiltIn reports whether iri names a platform-defined group.
func IsBuiltIn(iri string) bool {
	return builtIn[iri]
}

// GroupRef is an explicit membership: a custom group together with its
// owning project.
type GroupRef struct {
	Group   string `json:"group"`
	Project string `json:"project"`
}

// Memberships is everything the membership provider knows about one user.
type Memberships struct {
	ExplicitGroups []GroupRef `json:"explicit_groups"`
	Projects       []string   `json:"projects"`
	AdminOf        []string   `json:"admin_of"`
	IsSystemAdmin  bool       `json:"is_system_admin"`
}

// MembershipProvider supplies a user's stored memberships. The permission
// engine treats it as an external collaborator; the postgres store provides
// one implementation.
type MembershipProvider interface {
	MembershipsFor(ctx context.Context, userIRI string) (*Memberships, error)
}

// EffectiveGroups materializes the per-project group sets for a user:
// every explicit group under its owning project, ProjectMember for each
// project membership, ProjectAdmin for each admin membership, and
// SystemAdmin under the system project when the flag is set.
//
// KnownUser is intentionally not added here; the precedence resolver
// injects it for every authenticated caller, which keeps membership maps
// small and the injection in one place.
//
// Pure function: the only failure is an explicit group without an owning
// project, which is a stored-data defect.
func EffectiveGroups(m Memberships) (map[string][]string, error) {
	perProject := make(map[string][]string)

	add := func(project, group string) {
		for _, existing := range perProject[project] {
			if existing == group {
				return
			}
		}
		perProject[project] = append(perProject[project], group)
	}

	for _, ref := range m.ExplicitGroups {
		if ref.Project == "" {
			return nil, errs.InconsistentState("group %s has no owning project", ref.Group)
		}
		add(ref.Project, ref.Group)
	}
	for _, project := range m.Projects {
		add(project, ProjectMember)
	}
	for _, project := range m.AdminOf {
		add(project, ProjectAdmin)
	}
	if m.IsSystemAdmin {
		add(SystemProject, SystemAdmin)
	}

	return perProject, nil
}

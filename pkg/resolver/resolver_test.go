package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/groups"
	"github.com/stelae/stelae/pkg/permission"
	"github.com/stelae/stelae/pkg/store"
)

const (
	projectA = "http://stelae.io/projects/alpha"
	editors  = "http://stelae.io/groups/editors"
	writers  = "http://stelae.io/groups/writers"
)

type observed struct {
	operation string
	tier      string
}

func newTestResolver(t *testing.T) (*Resolver, *store.MemoryAdministrativeStore, *store.MemoryDOAPStore, *[]observed) {
	t.Helper()
	admin := store.NewMemoryAdministrativeStore()
	doap := store.NewMemoryDOAPStore()
	var seen []observed
	r := New(admin, doap, func(operation, tier string) {
		seen = append(seen, observed{operation, tier})
	})
	return r, admin, doap, &seen
}

func putAdmin(t *testing.T, s *store.MemoryAdministrativeStore, group string, perms permission.Set) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &store.AdministrativePermission{
		IRI:         "http://stelae.io/permissions/" + group,
		Project:     projectA,
		Group:       group,
		Permissions: perms,
	}))
}

func putDOAP(t *testing.T, s *store.MemoryDOAPStore, project string, sel store.Selector, perms permission.Set) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &store.DefaultObjectAccessPermission{
		IRI:         "http://stelae.io/permissions/doap-" + sel.Group + sel.ResourceClass + sel.Property,
		Project:     project,
		Selector:    sel,
		Permissions: perms,
	}))
}

func member(extra ...string) UserContext {
	return UserContext{Groups: append(extra, groups.ProjectMember)}
}

func TestAdministrativeProjectAdminWins(t *testing.T) {
	r, admin, _, seen := newTestResolver(t)

	adminPerms := permission.NewSet(permission.Administrative(permission.KindProjectAdminAll, ""))
	memberPerms := permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, ""))
	putAdmin(t, admin, groups.ProjectAdmin, adminPerms)
	putAdmin(t, admin, groups.ProjectMember, memberPerms)

	user := UserContext{Groups: []string{groups.ProjectAdmin, groups.ProjectMember}}
	got, err := r.Administrative(context.Background(), user, projectA)
	require.NoError(t, err)

	// the admin tier decided; the member rule was never consulted
	assert.True(t, got.Equal(adminPerms))
	require.Len(t, *seen, 1)
	assert.Equal(t, observed{"administrative", "projectAdmin"}, (*seen)[0])
}

func TestAdministrativeCustomGroupsBeatProjectMember(t *testing.T) {
	r, admin, _, seen := newTestResolver(t)

	editorPerms := permission.NewSet(permission.Administrative(permission.KindCreateResourceRestricted, "rc1"))
	memberPerms := permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, ""))
	putAdmin(t, admin, editors, editorPerms)
	putAdmin(t, admin, groups.ProjectMember, memberPerms)

	got, err := r.Administrative(context.Background(), member(editors), projectA)
	require.NoError(t, err)

	assert.True(t, got.Equal(editorPerms))
	assert.Equal(t, "customGroups", (*seen)[0].tier)
}

func TestAdministrativeCustomGroupsUnion(t *testing.T) {
	r, admin, _, _ := newTestResolver(t)

	putAdmin(t, admin, editors, permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, "")))
	putAdmin(t, admin, writers, permission.NewSet(permission.Administrative(permission.KindGroupAdminRestricted, writers)))

	got, err := r.Administrative(context.Background(), member(editors, writers), projectA)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.True(t, got.HasKind(permission.KindCreateResourceAll))
	assert.True(t, got.HasKind(permission.KindGroupAdminRestricted))
}

func TestAdministrativeFallsThroughToKnownUser(t *testing.T) {
	r, admin, _, seen := newTestResolver(t)

	knownPerms := permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, ""))
	putAdmin(t, admin, groups.KnownUser, knownPerms)

	// authenticated but with no memberships in this project
	got, err := r.Administrative(context.Background(), UserContext{}, projectA)
	require.NoError(t, err)
	assert.True(t, got.Equal(knownPerms))
	assert.Equal(t, "knownUser", (*seen)[0].tier)
}

func TestAdministrativeAnonymousSkipsKnownUser(t *testing.T) {
	r, admin, _, seen := newTestResolver(t)

	putAdmin(t, admin, groups.KnownUser, permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, "")))

	got, err := r.Administrative(context.Background(), UserContext{Anonymous: true}, projectA)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "none", (*seen)[0].tier)
}

func TestAdministrativeEmptyResultIsNotAnError(t *testing.T) {
	r, _, _, seen := newTestResolver(t)

	got, err := r.Administrative(context.Background(), member(), projectA)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "none", (*seen)[0].tier)
}

func TestAdministrativeApplicableTierWithNoRuleFallsThrough(t *testing.T) {
	r, admin, _, seen := newTestResolver(t)

	// user is a project admin, but only the member rule exists
	memberPerms := permission.NewSet(permission.Administrative(permission.KindCreateResourceAll, ""))
	putAdmin(t, admin, groups.ProjectMember, memberPerms)

	user := UserContext{Groups: []string{groups.ProjectAdmin, groups.ProjectMember}}
	got, err := r.Administrative(context.Background(), user, projectA)
	require.NoError(t, err)
	assert.True(t, got.Equal(memberPerms))
	assert.Equal(t, "projectMember", (*seen)[0].tier)
}

func TestResultSlotRejectsSecondFill(t *testing.T) {
	var res result
	require.NoError(t, res.fill("a", permission.NewSet(permission.ObjectAccess(permission.View, "g"))))
	err := res.fill("b", permission.NewSet(permission.ObjectAccess(permission.Modify, "g")))
	assert.ErrorIs(t, err, errs.ErrInconsistentState)
}

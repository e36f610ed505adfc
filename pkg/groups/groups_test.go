package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelae/stelae/pkg/errs"
)

const (
	projectA = "http://stelae.io/projects/alpha"
	projectB = "http://stelae.io/projects/beta"
	editors  = "http://stelae.io/groups/editors"
)

func TestIsBuiltIn(t *testing.T) {
	assert.True(t, IsBuiltIn(SystemAdmin))
	assert.True(t, IsBuiltIn(ProjectAdmin))
	assert.True(t, IsBuiltIn(ProjectMember))
	assert.True(t, IsBuiltIn(KnownUser))
	assert.True(t, IsBuiltIn(UnknownUser))
	assert.True(t, IsBuiltIn(Creator))

	assert.False(t, IsBuiltIn(editors))
	assert.False(t, IsBuiltIn(""))
}

func TestEffectiveGroups(t *testing.T) {
	m := Memberships{
		ExplicitGroups: []GroupRef{{Group: editors, Project: projectA}},
		Projects:       []string{projectA, projectB},
		AdminOf:        []string{projectB},
	}

	perProject, err := EffectiveGroups(m)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{editors, ProjectMember}, perProject[projectA])
	assert.ElementsMatch(t, []string{ProjectMember, ProjectAdmin}, perProject[projectB])
}

func TestEffectiveGroupsSystemAdmin(t *testing.T) {
	perProject, err := EffectiveGroups(Memberships{IsSystemAdmin: true})
	require.NoError(t, err)

	assert.Equal(t, []string{SystemAdmin}, perProject[SystemProject])
}

func TestEffectiveGroupsDedups(t *testing.T) {
	m := Memberships{
		ExplicitGroups: []GroupRef{
			{Group: editors, Project: projectA},
			{Group: editors, Project: projectA},
		},
		Projects: []string{projectA, projectA},
	}

	perProject, err := EffectiveGroups(m)
	require.NoError(t, err)
	assert.Len(t, perProject[projectA], 2)
}

func TestEffectiveGroupsNeverAddsKnownUser(t *testing.T) {
	perProject, err := EffectiveGroups(Memberships{Projects: []string{projectA}})
	require.NoError(t, err)

	for _, g := range perProject[projectA] {
		assert.NotEqual(t, KnownUser, g)
	}
}

func TestEffectiveGroupsOrphanGroupFails(t *testing.T) {
	m := Memberships{
		ExplicitGroups: []GroupRef{{Group: editors}},
	}

	_, err := EffectiveGroups(m)
	assert.ErrorIs(t, err, errs.ErrInconsistentState)
}

func TestEffectiveGroupsEmpty(t *testing.T) {
	perProject, err := EffectiveGroups(Memberships{})
	require.NoError(t, err)
	assert.Empty(t, perProject)
}

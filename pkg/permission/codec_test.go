package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	creator   = "http://stelae.io/groups#Creator"
	member    = "http://stelae.io/groups#ProjectMember"
	knownUser = "http://stelae.io/groups#KnownUser"
	editors   = "http://stelae.io/groups/editors"
)

func TestFormat(t *testing.T) {
	s := NewSet(
		ObjectAccess(View, knownUser),
		ObjectAccess(ChangeRights, creator),
		ObjectAccess(Modify, member),
		ObjectAccess(Modify, editors),
	)

	out, err := Format(s)
	require.NoError(t, err)
	assert.Equal(t, "CR "+creator+"|M "+member+","+editors+"|V "+knownUser, out)
}

func TestFormatRejectsAdministrative(t *testing.T) {
	_, err := Format(NewSet(Administrative(KindCreateResourceAll, "")))
	assert.Error(t, err)
}

func TestFormatRejectsEmpty(t *testing.T) {
	_, err := Format(NewSet())
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	s, err := Parse("CR " + creator + "|V " + knownUser + "," + member)
	require.NoError(t, err)

	assert.Len(t, s, 3)
	assert.True(t, s.Contains(ObjectAccess(ChangeRights, creator)))
	assert.True(t, s.Contains(ObjectAccess(View, knownUser)))
	assert.True(t, s.Contains(ObjectAccess(View, member)))
}

func TestParseToleratesReorderAndWhitespace(t *testing.T) {
	a, err := Parse("V " + knownUser + " | CR " + creator)
	require.NoError(t, err)
	b, err := Parse("CR " + creator + "|V " + knownUser)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestParseDuplicateGroupKeepsHigherLevel(t *testing.T) {
	s, err := Parse("V " + editors + "|D " + editors)
	require.NoError(t, err)

	require.Len(t, s, 1)
	assert.Equal(t, Delete, s[0].Level)
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"X " + editors,
		"V",
		"V ",
		"V " + editors + "||D " + member,
		"V ,",
	}
	for _, raw := range bad {
		_, err := Parse(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestRoundTripCanonical(t *testing.T) {
	s, err := Parse("V " + knownUser + "|CR " + creator)
	require.NoError(t, err)

	out, err := Format(s)
	require.NoError(t, err)
	assert.Equal(t, "CR "+creator+"|V "+knownUser, out)

	back, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, s.Equal(back))
}

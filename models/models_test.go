package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleContributor))
	assert.True(t, RoleContributor.AtLeast(RoleContributor))
	assert.True(t, RoleContributor.AtLeast(RoleInvited))
	assert.False(t, RoleInvited.AtLeast(RoleContributor))
	assert.False(t, RoleContributor.AtLeast(RoleAdmin))

	assert.False(t, Role(3).Valid())
	assert.False(t, Role(-1).Valid())
}

func TestParseRole(t *testing.T) {
	for name, want := range map[string]Role{
		"invited":     RoleInvited,
		"Contributor": RoleContributor,
		" ADMIN ":     RoleAdmin,
	} {
		got, ok := ParseRole(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got)
	}

	_, ok := ParseRole("owner")
	assert.False(t, ok)
}

func TestUserRoleMarshalsAsName(t *testing.T) {
	data, err := json.Marshal(User{ID: "u1", Name: "A", Role: RoleContributor})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"contributor"`)
}

func TestValidShardID(t *testing.T) {
	for _, id := range []string{"EUE127-010", "USE1-002", "APSE2-999"} {
		assert.True(t, ValidShardID(id), id)
	}
	for _, id := range []string{"", "eue127-010", "XXE1-001", "EU-001", "EUE127-01", "EUE127010", "EUE1234567890-001"} {
		assert.False(t, ValidShardID(id), id)
	}
}

func TestValidRegion(t *testing.T) {
	assert.True(t, ValidRegion("eu"))
	assert.True(t, ValidRegion("AP"))
	assert.False(t, ValidRegion("EUE"))
	assert.False(t, ValidRegion(""))
}

func TestParseItemSort(t *testing.T) {
	s, ok := ParseItemSort("")
	assert.True(t, ok)
	assert.Equal(t, SortRecent, s)

	s, ok = ParseItemSort("likes")
	assert.True(t, ok)
	assert.Equal(t, SortLikes, s)

	s, ok = ParseItemSort("found")
	assert.True(t, ok)
	assert.Equal(t, SortFound, s)

	_, ok = ParseItemSort("random")
	assert.False(t, ok)
}

func TestVisibilityFor(t *testing.T) {
	assert.Equal(t, StrictPublic(true), VisibilityFor(nil))
	assert.Equal(t, Unrestricted(), VisibilityFor(&User{ID: "a", Role: RoleAdmin}))
	assert.Equal(t, PublicOrOwnedBy("c"), VisibilityFor(&User{ID: "c", Role: RoleContributor}))
	assert.Equal(t, PublicOrOwnedBy("i"), VisibilityFor(&User{ID: "i", Role: RoleInvited}))
}

func TestHasImage(t *testing.T) {
	empty := ""
	key := "items/pv/id.png"
	assert.False(t, Item{}.HasImage())
	assert.False(t, Item{Image: &empty}.HasImage())
	assert.True(t, Item{Image: &key}.HasImage())
	assert.True(t, Response{Image: &key}.HasImage())
}

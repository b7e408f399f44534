package accesscontrol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRoles(t *testing.T) {
	ctx := context.Background()
	roles := NewStaticRoles(map[int64][]RoleName{
		1: {RoleUser},
		2: {RoleModerator},
		3: {RoleAdmin, RoleUser},
	})

	cases := []struct {
		user int64
		want bool
	}{
		{1, false},
		{2, true},
		{3, true},
		{4, false},
	}
	for _, c := range cases {
		ok, err := roles.UserHasAnyRole(ctx, c.user, ModerationRoles...)
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "user %d", c.user)
	}

	roles.Assign(1, RoleModerator)
	ok, err := roles.UserHasAnyRole(ctx, 1, RoleModerator)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = roles.UserHasAnyRole(ctx, 3, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = roles.UserHasAnyRole(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok, "no roles requested")
}

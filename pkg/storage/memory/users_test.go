package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	require.NoError(t, store.Create(ctx, &users.User{Username: "alice", Role: auth.RoleDeveloper, Active: true}))
	require.NoError(t, store.Create(ctx, &users.User{Username: "bob", Role: auth.RoleUser, Active: true}))
	assert.True(t, apperrors.IsConflict(store.Create(ctx, &users.User{Username: "alice"})))

	updated, err := store.Update(ctx, "alice", func(u *users.User) error {
		u.Role = auth.RoleAdmin
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	_, err = store.Update(ctx, "alice", func(u *users.User) error {
		u.Username = "mallory"
		return nil
	})
	assert.Error(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	require.NoError(t, store.Delete(ctx, "bob"))
	_, err = store.Get(ctx, "bob")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

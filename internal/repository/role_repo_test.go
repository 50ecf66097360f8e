package repository

import (
	"context"
	"testing"

	"sims/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRepositoryEnsureAndLink(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	user := newTestUser("dave", "dave@example.com")
	require.NoError(t, users.Create(ctx, user))

	admin, err := roles.EnsureRole(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	again, err := roles.EnsureRole(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	client, err := roles.EnsureRole(ctx, entity.RoleClient)
	require.NoError(t, err)

	require.NoError(t, roles.Link(ctx, user.ID, client.ID))
	require.NoError(t, roles.Link(ctx, user.ID, admin.ID))
	require.NoError(t, roles.Link(ctx, user.ID, admin.ID))

	names, err := roles.RolesForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{entity.RoleAdmin, entity.RoleClient}, names)

	removed, err := roles.Unlink(ctx, user.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = roles.Unlink(ctx, user.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	names, err = roles.RolesForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{entity.RoleClient}, names)
}

func TestRoleRepositoryUnknownRole(t *testing.T) {
	db := setupTestDB(t)
	roles := NewRoleRepository(db)

	role, err := roles.FindByName(context.Background(), "Ghost")
	require.NoError(t, err)
	assert.Nil(t, role)

	names, err := roles.RolesForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestTransactorRollsBack(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)
	tx := NewTransactor(db)
	ctx := context.Background()

	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := users.Create(ctx, newTestUser("erin", "erin@example.com")); err != nil {
			return err
		}
		if _, err := roles.EnsureRole(ctx, entity.RoleClient); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	user, err := users.FindByEmail(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)

	role, err := roles.FindByName(ctx, entity.RoleClient)
	require.NoError(t, err)
	assert.Nil(t, role)
}

package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

func seedUserWithRole(t *testing.T, store storage.Store, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		Email:    string(role) + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestChecker_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("admin passes admin check", func(t *testing.T) {
		store := storage.NewMemoryStore()
		admin := seedUserWithRole(t, store, models.RoleAdmin)

		allowed, err := NewChecker(store).Check(ctx, admin.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.True(t, allowed)
	})

	t.Run("manager passes admin-or-manager but not admin", func(t *testing.T) {
		store := storage.NewMemoryStore()
		manager := seedUserWithRole(t, store, models.RoleManager)
		checker := NewChecker(store)

		allowed, err := checker.Check(ctx, manager.ID, models.RoleAdmin, models.RoleManager)
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, err = checker.Check(ctx, manager.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.False(t, allowed)
	})

	t.Run("agent fails write checks", func(t *testing.T) {
		store := storage.NewMemoryStore()
		agent := seedUserWithRole(t, store, models.RoleAgent)

		require.ErrorIs(t, NewChecker(store).RequireManager(ctx, agent.ID), ErrForbidden)
	})

	t.Run("unknown user is denied", func(t *testing.T) {
		allowed, err := NewChecker(storage.NewMemoryStore()).Check(ctx, uuid.New(), models.RoleAdmin)
		require.NoError(t, err)
		require.False(t, allowed)
	})

	t.Run("inactive user is denied", func(t *testing.T) {
		store := storage.NewMemoryStore()
		admin := seedUserWithRole(t, store, models.RoleAdmin)
		admin.IsActive = false
		require.NoError(t, store.UpdateUser(ctx, admin))

		allowed, err := NewChecker(store).Check(ctx, admin.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.False(t, allowed)
	})

	t.Run("role change takes effect on the next check", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := seedUserWithRole(t, store, models.RoleAgent)
		checker := NewChecker(store)

		allowed, err := checker.Check(ctx, user.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.False(t, allowed)

		user.Role = models.RoleAdmin
		require.NoError(t, store.UpdateUser(ctx, user))

		allowed, err = checker.Check(ctx, user.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.True(t, allowed)
	})
}

func TestChecker_RequireSelfOrManager(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	checker := NewChecker(store)

	agent := seedUserWithRole(t, store, models.RoleAgent)
	other := seedUserWithRole(t, store, models.RoleManager)

	t.Run("self-service bypasses the role check", func(t *testing.T) {
		id := Identity{UserID: agent.ID, Email: agent.Email, Role: agent.Role}
		require.NoError(t, checker.RequireSelfOrManager(ctx, id, agent.ID))
	})

	t.Run("agent cannot touch another user's resource", func(t *testing.T) {
		id := Identity{UserID: agent.ID, Email: agent.Email, Role: agent.Role}
		require.ErrorIs(t, checker.RequireSelfOrManager(ctx, id, other.ID), ErrForbidden)
	})

	t.Run("manager can touch another user's resource", func(t *testing.T) {
		id := Identity{UserID: other.ID, Email: other.Email, Role: other.Role}
		require.NoError(t, checker.RequireSelfOrManager(ctx, id, agent.ID))
	})
}

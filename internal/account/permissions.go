package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

// Checker decides whether an operation is allowed for a user's current role.
// It re-reads the role on every call, so a role change takes effect on the
// very next request. Pure decision function, no side effects.
type Checker struct {
	store storage.Store
}

// NewChecker creates a new permission checker
func NewChecker(store storage.Store) *Checker {
	return &Checker{store: store}
}

// Check reports whether the user's current role is in the required set.
// An unknown or inactive user is never allowed.
func (c *Checker) Check(ctx context.Context, userID uuid.UUID, required ...models.Role) (bool, error) {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check permission: %w", err)
	}

	if !user.IsActive {
		return false, nil
	}

	for _, role := range required {
		if user.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// Require is Check with ErrForbidden instead of a boolean.
func (c *Checker) Require(ctx context.Context, userID uuid.UUID, required ...models.Role) error {
	allowed, err := c.Check(ctx, userID, required...)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// RequireAdmin gates admin-only operations.
func (c *Checker) RequireAdmin(ctx context.Context, userID uuid.UUID) error {
	return c.Require(ctx, userID, models.RoleAdmin)
}

// RequireManager gates write operations open to admins and managers.
func (c *Checker) RequireManager(ctx context.Context, userID uuid.UUID) error {
	return c.Require(ctx, userID, models.RoleAdmin, models.RoleManager)
}

// RequireSelfOrManager allows self-service access to one's own resources and
// admin/manager access to everyone else's.
func (c *Checker) RequireSelfOrManager(ctx context.Context, id Identity, ownerID uuid.UUID) error {
	if id.IsSelf(ownerID) {
		return nil
	}
	return c.RequireManager(ctx, id.UserID)
}

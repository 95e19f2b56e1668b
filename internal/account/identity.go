// Package account implements the multi-tenant account and access-control
// core: account resolution, role permissions, tenancy-scoped visibility and
// the business upgrade/downgrade migration.
package account

import (
	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

// Identity is the request-bound identity resolved from a session. It is
// passed explicitly into every core call; there is no ambient request state.
type Identity struct {
	UserID     uuid.UUID
	Email      string
	Role       models.Role
	BusinessID *uuid.UUID

	// SessionToken is the session the identity was resolved from. Migration
	// rewrites that session's denormalized business id in place.
	SessionToken string
}

// IsBusiness reports whether the identity is scoped to a business tenancy.
func (id Identity) IsBusiness() bool {
	return id.BusinessID != nil
}

// IsSelf reports whether the identity refers to the given user. Self-service
// operations use this instead of a role check.
func (id Identity) IsSelf(userID uuid.UUID) bool {
	return id.UserID == userID
}

// IsOwnEmail reports whether the identity owns the given (case-insensitive)
// email address.
func (id Identity) IsOwnEmail(email string) bool {
	return models.NormalizeEmail(id.Email) == models.NormalizeEmail(email)
}

package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

// sameBusiness compares two optional business ids.
func sameBusiness(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ReconcileSession verifies that a session's denormalized business id still
// matches its user's tenancy and self-heals from the User row when it does
// not. A crash between the user and session updates of a migration leaves the
// two out of sync; the User row is the source of truth. Returns the user the
// session belongs to.
func ReconcileSession(ctx context.Context, store storage.Store, session *models.Session) (*models.User, error) {
	user, err := store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("reconcile session: load user: %w", err)
	}

	if sameBusiness(session.BusinessID, user.BusinessID) {
		return user, nil
	}

	log.Warn().
		Str("user_id", user.ID.String()).
		Msg("Session tenancy out of sync with user, resyncing from user row")

	if err := store.UpdateSessionBusiness(ctx, session.Token, user.BusinessID); err != nil {
		return nil, fmt.Errorf("reconcile session: resync: %w", err)
	}
	session.BusinessID = user.BusinessID

	return user, nil
}

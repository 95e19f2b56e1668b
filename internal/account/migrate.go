package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

// EventPublisher receives account lifecycle notifications after a migration
// commits. Publishing is best-effort; a failed publish never fails the
// migration.
type EventPublisher interface {
	AccountUpgraded(ctx context.Context, userID, businessID uuid.UUID)
	AccountDowngraded(ctx context.Context, userID, businessID uuid.UUID)
}

// Migrator executes the personal/business tenancy transitions. Each
// transition runs inside a single storage transaction so the user, session,
// mail token and business mutations land together or not at all, and each is
// written to converge on retry.
type Migrator struct {
	store  storage.Store
	events EventPublisher
}

// NewMigrator creates a new tenancy migrator. events may be nil.
func NewMigrator(store storage.Store, events EventPublisher) *Migrator {
	return &Migrator{store: store, events: events}
}

// Upgrade migrates a personal account into a business tenancy. The business
// is found-or-created atomically on its unique business_email, so concurrent
// upgrades for the same email converge on one business. The acting user
// becomes the business admin and every mail token still in personal scope
// moves to the business; tokens already attached elsewhere are untouched.
func (m *Migrator) Upgrade(ctx context.Context, id Identity) (*models.Business, error) {
	user, err := m.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("upgrade: load user: %w", err)
	}

	if user.BusinessID != nil {
		return nil, ErrAlreadyInTenancy
	}

	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("upgrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	business := &models.Business{
		BusinessEmail:    user.Email,
		OwnerName:        user.Name,
		SubscriptionTier: models.TierFree,
		// Inherited from the already-verified personal account.
		EmailVerified: true,
	}
	if err := tx.UpsertBusinessByEmail(ctx, business); err != nil {
		return nil, fmt.Errorf("upgrade: find-or-create business: %w", err)
	}

	if err := tx.SetUserTenancy(ctx, user.ID, &business.ID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("upgrade: set user tenancy: %w", err)
	}

	// The active session is re-scoped in the same transaction so the next
	// request on it already sees the business. An expired or missing session
	// is tolerated: the user row is the source of truth.
	if id.SessionToken != "" {
		if err := tx.UpdateSessionBusiness(ctx, id.SessionToken, &business.ID); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("upgrade: update session: %w", err)
		}
	}

	if err := tx.ReassignMailTokensByEmail(ctx, user.Email, &business.ID, true); err != nil {
		return nil, fmt.Errorf("upgrade: reassign mail tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upgrade: commit: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("business_id", business.ID.String()).
		Msg("Account upgraded to business tenancy")

	if m.events != nil {
		m.events.AccountUpgraded(ctx, user.ID, business.ID)
	}

	return business, nil
}

// Downgrade migrates a business member back to a personal account. It is
// blocked while other active members share the business. The teammate count
// is validated inside the same transaction as the mutation so a concurrent
// join cannot slip between check and clear. The empty business row is
// deleted last, after nothing references it, and the delete tolerates an
// already-gone row so a retried downgrade converges.
func (m *Migrator) Downgrade(ctx context.Context, id Identity) error {
	user, err := m.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("downgrade: load user: %w", err)
	}

	if user.BusinessID == nil {
		return ErrAlreadyInTenancy
	}
	businessID := *user.BusinessID

	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("downgrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	teammates, err := tx.CountActiveUsers(ctx, businessID, user.ID)
	if err != nil {
		return fmt.Errorf("downgrade: count teammates: %w", err)
	}
	if teammates > 0 {
		return ErrTeammatesExist
	}

	if err := tx.SetUserTenancy(ctx, user.ID, nil, models.RoleAgent); err != nil {
		return fmt.Errorf("downgrade: set user tenancy: %w", err)
	}

	if id.SessionToken != "" {
		if err := tx.UpdateSessionBusiness(ctx, id.SessionToken, nil); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("downgrade: update session: %w", err)
		}
	}

	if err := tx.ReassignMailTokensByEmail(ctx, user.Email, nil, false); err != nil {
		return fmt.Errorf("downgrade: reassign mail tokens: %w", err)
	}

	if err := tx.DeleteBusiness(ctx, businessID); err != nil {
		return fmt.Errorf("downgrade: delete business: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("downgrade: commit: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("business_id", businessID.String()).
		Msg("Account downgraded to personal tenancy")

	if m.events != nil {
		m.events.AccountDowngraded(ctx, user.ID, businessID)
	}

	return nil
}

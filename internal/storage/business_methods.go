package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

const businessColumns = `id, created_at, updated_at, business_email, owner_name,
subscription_tier, email_verified`

// GetBusiness gets a business by ID
func (s *PostgresStore) GetBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`

	business := &models.Business{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&business.ID, &business.CreatedAt, &business.UpdatedAt,
		&business.BusinessEmail, &business.OwnerName,
		&business.SubscriptionTier, &business.EmailVerified,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return business, err
}

// GetBusinessByEmail gets a business by its unique business email
func (s *PostgresStore) GetBusinessByEmail(ctx context.Context, email string) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE business_email = $1`

	business := &models.Business{}
	err := s.getDB().QueryRowContext(ctx, query, models.NormalizeEmail(email)).Scan(
		&business.ID, &business.CreatedAt, &business.UpdatedAt,
		&business.BusinessEmail, &business.OwnerName,
		&business.SubscriptionTier, &business.EmailVerified,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return business, err
}

// UpsertBusinessByEmail inserts the business, or reuses the existing row when
// one is already registered for the same business_email. The unique index on
// business_email makes find-or-create atomic: two concurrent upgrades for the
// same email converge on a single row instead of racing look-then-insert.
func (s *PostgresStore) UpsertBusinessByEmail(ctx context.Context, business *models.Business) error {
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}

	now := time.Now()
	business.CreatedAt = now
	business.UpdatedAt = now
	business.BusinessEmail = models.NormalizeEmail(business.BusinessEmail)

	// The no-op DO UPDATE lets RETURNING yield the surviving row on conflict.
	query := `
		INSERT INTO businesses (
			id, created_at, updated_at, business_email, owner_name,
			subscription_tier, email_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_email) DO UPDATE
			SET business_email = EXCLUDED.business_email
		RETURNING ` + businessColumns

	err := s.getDB().QueryRowContext(ctx, query,
		business.ID, business.CreatedAt, business.UpdatedAt,
		business.BusinessEmail, business.OwnerName,
		business.SubscriptionTier, business.EmailVerified,
	).Scan(
		&business.ID, &business.CreatedAt, &business.UpdatedAt,
		&business.BusinessEmail, &business.OwnerName,
		&business.SubscriptionTier, &business.EmailVerified,
	)

	return err
}

// DeleteBusiness deletes a business. Deleting a business that is already gone
// is not an error: the downgrade flow deletes last and must tolerate retries.
func (s *PostgresStore) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	_, err := s.getDB().ExecContext(ctx, "DELETE FROM businesses WHERE id = $1", id)
	return err
}

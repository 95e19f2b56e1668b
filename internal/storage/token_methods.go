package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

const mailTokenColumns = `id, created_at, updated_at, user_email, business_id,
provider, access_token, refresh_token, expires_at`

// CreateMailToken creates a new mail token
func (s *PostgresStore) CreateMailToken(ctx context.Context, token *models.MailToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now
	token.UserEmail = models.NormalizeEmail(token.UserEmail)

	query := `
		INSERT INTO mail_tokens (
			id, created_at, updated_at, user_email, business_id,
			provider, access_token, refresh_token, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		token.ID, token.CreatedAt, token.UpdatedAt, token.UserEmail,
		token.BusinessID, token.Provider, token.AccessToken,
		token.RefreshToken, token.ExpiresAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetMailToken gets a mail token by ID
func (s *PostgresStore) GetMailToken(ctx context.Context, id uuid.UUID) (*models.MailToken, error) {
	query := `SELECT ` + mailTokenColumns + ` FROM mail_tokens WHERE id = $1`

	token := &models.MailToken{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&token.ID, &token.CreatedAt, &token.UpdatedAt, &token.UserEmail,
		&token.BusinessID, &token.Provider, &token.AccessToken,
		&token.RefreshToken, &token.ExpiresAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return token, err
}

// ListMailTokensByEmail lists mail tokens owned by an email
func (s *PostgresStore) ListMailTokensByEmail(ctx context.Context, email string) ([]*models.MailToken, error) {
	query := `SELECT ` + mailTokenColumns + `
		FROM mail_tokens
		WHERE user_email = $1
		ORDER BY created_at ASC`

	rows, err := s.getDB().QueryContext(ctx, query, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.MailToken
	for rows.Next() {
		token := &models.MailToken{}
		err := rows.Scan(
			&token.ID, &token.CreatedAt, &token.UpdatedAt, &token.UserEmail,
			&token.BusinessID, &token.Provider, &token.AccessToken,
			&token.RefreshToken, &token.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// ReassignMailTokensByEmail moves every token owned by the email to the given
// business id. With onlyUnassigned set, tokens that already belong to a
// business are left alone; the upgrade flow uses this so a token connected
// under another business is never stolen.
func (s *PostgresStore) ReassignMailTokensByEmail(ctx context.Context, email string, businessID *uuid.UUID, onlyUnassigned bool) error {
	query := `UPDATE mail_tokens SET business_id = $2, updated_at = $3 WHERE user_email = $1`
	if onlyUnassigned {
		query += ` AND business_id IS NULL`
	}

	_, err := s.getDB().ExecContext(ctx, query,
		models.NormalizeEmail(email), businessID, time.Now())
	return err
}

// DeleteMailToken deletes a mail token
func (s *PostgresStore) DeleteMailToken(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM mail_tokens WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

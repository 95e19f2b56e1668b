package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

// CreateSession creates a new session
func (s *PostgresStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.Email = models.NormalizeEmail(session.Email)

	query := `
		INSERT INTO sessions (token, user_id, email, business_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		session.Token, session.UserID, session.Email, session.BusinessID,
		session.CreatedAt, session.ExpiresAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetSession gets a session by token
func (s *PostgresStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT token, user_id, email, business_id, created_at, expires_at
		FROM sessions
		WHERE token = $1`

	session := &models.Session{}
	err := s.getDB().QueryRowContext(ctx, query, token).Scan(
		&session.Token, &session.UserID, &session.Email, &session.BusinessID,
		&session.CreatedAt, &session.ExpiresAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return session, err
}

// UpdateSessionBusiness rewrites the denormalized business id on a session
func (s *PostgresStore) UpdateSessionBusiness(ctx context.Context, token string, businessID *uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE sessions SET business_id = $2 WHERE token = $1", token, businessID)
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

// DeleteSession deletes a session
func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
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

// DeleteExpiredSessions removes sessions past their expiry
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < $1", time.Now())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

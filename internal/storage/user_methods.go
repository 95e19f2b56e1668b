package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

const userColumns = `id, created_at, updated_at, email, name, password_hash,
role, business_id, is_active, email_verified, last_login_at, settings`

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = models.NormalizeEmail(user.Email)

	if user.Role == "" {
		user.Role = models.RoleAgent
	}
	if !user.Role.Valid() {
		return ErrInvalidData
	}

	query := `
		INSERT INTO users (
			id, created_at, updated_at, email, name, password_hash,
			role, business_id, is_active, email_verified, settings
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.Email, user.Name,
		user.PasswordHash, user.Role, user.BusinessID, user.IsActive,
		user.EmailVerified, user.Settings,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetUser gets a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &models.User{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Name,
		&user.PasswordHash, &user.Role, &user.BusinessID, &user.IsActive,
		&user.EmailVerified, &user.LastLoginAt, &user.Settings,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return user, err
}

// GetUsersByEmail returns all active user rows for an email. Ordering matters:
// business-linked rows come first, then earliest created, so the first row is
// the canonical primary account.
func (s *PostgresStore) GetUsersByEmail(ctx context.Context, email string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND is_active = true
		ORDER BY (business_id IS NULL), created_at ASC, id ASC`

	rows, err := s.getDB().QueryContext(ctx, query, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Name,
			&user.PasswordHash, &user.Role, &user.BusinessID, &user.IsActive,
			&user.EmailVerified, &user.LastLoginAt, &user.Settings,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	user.Email = models.NormalizeEmail(user.Email)

	query := `
		UPDATE users SET
			updated_at = $2, email = $3, name = $4, password_hash = $5,
			role = $6, business_id = $7, is_active = $8, email_verified = $9,
			last_login_at = $10, settings = $11
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Email, user.Name, user.PasswordHash,
		user.Role, user.BusinessID, user.IsActive, user.EmailVerified,
		user.LastLoginAt, user.Settings,
	)

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

// DeleteUser deletes a user
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
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

// ListUsers lists users
func (s *PostgresStore) ListUsers(ctx context.Context, businessID *uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	var args []interface{}
	query := `SELECT ` + userColumns + ` FROM users`
	countQuery := `SELECT COUNT(*) FROM users`

	if businessID != nil {
		query += ` WHERE business_id = $1`
		countQuery += ` WHERE business_id = $1`
		args = append(args, *businessID)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Name,
			&user.PasswordHash, &user.Role, &user.BusinessID, &user.IsActive,
			&user.EmailVerified, &user.LastLoginAt, &user.Settings,
		)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, count, rows.Err()
}

// CountActiveUsers counts active members of a business, excluding one user.
// The downgrade flow calls this inside the same transaction as the mutation
// so the teammate check cannot race a concurrent join.
func (s *PostgresStore) CountActiveUsers(ctx context.Context, businessID uuid.UUID, excludeUserID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*) FROM users
		WHERE business_id = $1 AND id != $2 AND is_active = true`

	var count int64
	err := s.getDB().QueryRowContext(ctx, query, businessID, excludeUserID).Scan(&count)
	return count, err
}

// SetUserTenancy rewrites a user's business link and role in one statement
func (s *PostgresStore) SetUserTenancy(ctx context.Context, userID uuid.UUID, businessID *uuid.UUID, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidData
	}

	query := `
		UPDATE users SET business_id = $2, role = $3, updated_at = $4
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, userID, businessID, role, time.Now())
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

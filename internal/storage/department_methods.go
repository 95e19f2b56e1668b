package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

const departmentColumns = `id, created_at, updated_at, name, description,
user_email, business_id`

// CreateDepartment creates a new department
func (s *PostgresStore) CreateDepartment(ctx context.Context, dept *models.Department) error {
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}

	now := time.Now()
	dept.CreatedAt = now
	dept.UpdatedAt = now

	query := `
		INSERT INTO departments (
			id, created_at, updated_at, name, description, user_email, business_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		dept.ID, dept.CreatedAt, dept.UpdatedAt, dept.Name, dept.Description,
		dept.UserEmail, dept.BusinessID,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetDepartment gets a department by ID
func (s *PostgresStore) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1`

	dept := &models.Department{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&dept.ID, &dept.CreatedAt, &dept.UpdatedAt, &dept.Name,
		&dept.Description, &dept.UserEmail, &dept.BusinessID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return dept, err
}

// UpdateDepartment updates a department
func (s *PostgresStore) UpdateDepartment(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now()

	query := `
		UPDATE departments SET updated_at = $2, name = $3, description = $4
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		dept.ID, dept.UpdatedAt, dept.Name, dept.Description,
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

// DeleteDepartment deletes a department
func (s *PostgresStore) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM departments WHERE id = $1", id)
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

// ListDepartments lists departments with visibility filters
func (s *PostgresStore) ListDepartments(ctx context.Context, filters DepartmentFilters, limit, offset int) ([]*models.Department, int64, error) {
	query := "SELECT COUNT(*) FROM departments WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.BusinessID != nil {
		argCount++
		query += fmt.Sprintf(" AND business_id = $%d", argCount)
		args = append(args, *filters.BusinessID)
	}

	if filters.UserEmail != nil {
		argCount++
		query += fmt.Sprintf(" AND user_email = $%d", argCount)
		args = append(args, *filters.UserEmail)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	selectQuery := strings.Replace(query, "SELECT COUNT(*)", "SELECT "+departmentColumns, 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var depts []*models.Department
	for rows.Next() {
		dept := &models.Department{}
		err := rows.Scan(
			&dept.ID, &dept.CreatedAt, &dept.UpdatedAt, &dept.Name,
			&dept.Description, &dept.UserEmail, &dept.BusinessID,
		)
		if err != nil {
			return nil, 0, err
		}
		depts = append(depts, dept)
	}

	return depts, count, rows.Err()
}

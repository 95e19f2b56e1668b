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

const knowledgeColumns = `id, created_at, updated_at, title, content, status,
user_email, business_id, created_by`

// CreateKnowledgeItem creates a new knowledge item
func (s *PostgresStore) CreateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if item.Status == "" {
		item.Status = models.KnowledgePending
	}

	query := `
		INSERT INTO knowledge_items (
			id, created_at, updated_at, title, content, status,
			user_email, business_id, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		item.ID, item.CreatedAt, item.UpdatedAt, item.Title, item.Content,
		item.Status, item.UserEmail, item.BusinessID, item.CreatedBy,
	)

	return err
}

// GetKnowledgeItem gets a knowledge item by ID
func (s *PostgresStore) GetKnowledgeItem(ctx context.Context, id uuid.UUID) (*models.KnowledgeItem, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_items WHERE id = $1`

	item := &models.KnowledgeItem{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.Title, &item.Content,
		&item.Status, &item.UserEmail, &item.BusinessID, &item.CreatedBy,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return item, err
}

// UpdateKnowledgeItem updates a knowledge item
func (s *PostgresStore) UpdateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error {
	item.UpdatedAt = time.Now()

	query := `
		UPDATE knowledge_items SET
			updated_at = $2, title = $3, content = $4, status = $5
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		item.ID, item.UpdatedAt, item.Title, item.Content, item.Status,
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

// DeleteKnowledgeItem deletes a knowledge item
func (s *PostgresStore) DeleteKnowledgeItem(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM knowledge_items WHERE id = $1", id)
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

// ListKnowledgeItems lists knowledge items with visibility filters
func (s *PostgresStore) ListKnowledgeItems(ctx context.Context, filters KnowledgeFilters, limit, offset int) ([]*models.KnowledgeItem, int64, error) {
	query := "SELECT COUNT(*) FROM knowledge_items WHERE 1=1"
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

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	selectQuery := strings.Replace(query, "SELECT COUNT(*)", "SELECT "+knowledgeColumns, 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*models.KnowledgeItem
	for rows.Next() {
		item := &models.KnowledgeItem{}
		err := rows.Scan(
			&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.Title, &item.Content,
			&item.Status, &item.UserEmail, &item.BusinessID, &item.CreatedBy,
		)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	return items, count, rows.Err()
}

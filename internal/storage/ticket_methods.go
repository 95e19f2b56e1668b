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

const ticketColumns = `id, created_at, updated_at, subject, body, status, priority,
customer_email, assigned_to, department_id, user_email, business_id`

// CreateTicket creates a new ticket
func (s *PostgresStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}

	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityNormal
	}

	query := `
		INSERT INTO tickets (
			id, created_at, updated_at, subject, body, status, priority,
			customer_email, assigned_to, department_id, user_email, business_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.getDB().ExecContext(ctx, query,
		ticket.ID, ticket.CreatedAt, ticket.UpdatedAt, ticket.Subject,
		ticket.Body, ticket.Status, ticket.Priority, ticket.CustomerEmail,
		ticket.AssignedTo, ticket.DepartmentID, ticket.UserEmail, ticket.BusinessID,
	)

	return err
}

// GetTicket gets a ticket by ID
func (s *PostgresStore) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket := &models.Ticket{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Subject,
		&ticket.Body, &ticket.Status, &ticket.Priority, &ticket.CustomerEmail,
		&ticket.AssignedTo, &ticket.DepartmentID, &ticket.UserEmail, &ticket.BusinessID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return ticket, err
}

// UpdateTicket updates a ticket
func (s *PostgresStore) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	ticket.UpdatedAt = time.Now()

	query := `
		UPDATE tickets SET
			updated_at = $2, subject = $3, body = $4, status = $5, priority = $6,
			customer_email = $7, assigned_to = $8, department_id = $9
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		ticket.ID, ticket.UpdatedAt, ticket.Subject, ticket.Body,
		ticket.Status, ticket.Priority, ticket.CustomerEmail,
		ticket.AssignedTo, ticket.DepartmentID,
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

// DeleteTicket deletes a ticket
func (s *PostgresStore) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM tickets WHERE id = $1", id)
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

// ListTickets lists tickets with visibility filters
func (s *PostgresStore) ListTickets(ctx context.Context, filters TicketFilters, limit, offset int) ([]*models.Ticket, int64, error) {
	// Build query with filters
	query := "SELECT COUNT(*) FROM tickets WHERE 1=1"
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

	if filters.AssignedTo != nil {
		argCount++
		if filters.IncludeUnassigned {
			query += fmt.Sprintf(" AND (assigned_to = $%d OR assigned_to IS NULL)", argCount)
		} else {
			query += fmt.Sprintf(" AND assigned_to = $%d", argCount)
		}
		args = append(args, *filters.AssignedTo)
	}

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	if filters.DepartmentID != nil {
		argCount++
		query += fmt.Sprintf(" AND department_id = $%d", argCount)
		args = append(args, *filters.DepartmentID)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	selectQuery := strings.Replace(query, "SELECT COUNT(*)", "SELECT "+ticketColumns, 1)

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

	var tickets []*models.Ticket
	for rows.Next() {
		ticket := &models.Ticket{}
		err := rows.Scan(
			&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Subject,
			&ticket.Body, &ticket.Status, &ticket.Priority, &ticket.CustomerEmail,
			&ticket.AssignedTo, &ticket.DepartmentID, &ticket.UserEmail, &ticket.BusinessID,
		)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, ticket)
	}

	return tickets, count, rows.Err()
}

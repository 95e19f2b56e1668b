package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetUsersByEmail returns every active user row for the normalized email,
	// ordered business-linked first, then earliest created.
	GetUsersByEmail(ctx context.Context, email string) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, businessID *uuid.UUID, limit, offset int) ([]*models.User, int64, error)
	// CountActiveUsers counts active members of a business excluding one user.
	CountActiveUsers(ctx context.Context, businessID uuid.UUID, excludeUserID uuid.UUID) (int64, error)
	// SetUserTenancy rewrites a user's business link and role in one statement.
	SetUserTenancy(ctx context.Context, userID uuid.UUID, businessID *uuid.UUID, role models.Role) error

	// Business methods
	GetBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	GetBusinessByEmail(ctx context.Context, email string) (*models.Business, error)
	// UpsertBusinessByEmail inserts the business or, when a row for the same
	// business_email already exists, loads that row into business instead.
	// Conflict means reuse, never a duplicate insert.
	UpsertBusinessByEmail(ctx context.Context, business *models.Business) error
	// DeleteBusiness is idempotent: deleting an already-gone business is not
	// an error. Migration relies on this for retry safety.
	DeleteBusiness(ctx context.Context, id uuid.UUID) error

	// Session methods
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	UpdateSessionBusiness(ctx context.Context, token string, businessID *uuid.UUID) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Mail token methods
	CreateMailToken(ctx context.Context, token *models.MailToken) error
	GetMailToken(ctx context.Context, id uuid.UUID) (*models.MailToken, error)
	ListMailTokensByEmail(ctx context.Context, email string) ([]*models.MailToken, error)
	// ReassignMailTokensByEmail moves every token owned by the email to the
	// given business id (nil detaches). With onlyUnassigned set, rows that
	// already carry a business id are left untouched.
	ReassignMailTokensByEmail(ctx context.Context, email string, businessID *uuid.UUID, onlyUnassigned bool) error
	DeleteMailToken(ctx context.Context, id uuid.UUID) error

	// Department methods
	CreateDepartment(ctx context.Context, dept *models.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	UpdateDepartment(ctx context.Context, dept *models.Department) error
	DeleteDepartment(ctx context.Context, id uuid.UUID) error
	ListDepartments(ctx context.Context, filters DepartmentFilters, limit, offset int) ([]*models.Department, int64, error)

	// Knowledge methods
	CreateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error
	GetKnowledgeItem(ctx context.Context, id uuid.UUID) (*models.KnowledgeItem, error)
	UpdateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error
	DeleteKnowledgeItem(ctx context.Context, id uuid.UUID) error
	ListKnowledgeItems(ctx context.Context, filters KnowledgeFilters, limit, offset int) ([]*models.KnowledgeItem, int64, error)

	// Ticket methods
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error
	DeleteTicket(ctx context.Context, id uuid.UUID) error
	ListTickets(ctx context.Context, filters TicketFilters, limit, offset int) ([]*models.Ticket, int64, error)

	// Close the store
	Close() error
}

// TicketFilters represents visibility filters for tickets
type TicketFilters struct {
	BusinessID *uuid.UUID
	UserEmail  *string
	// AssignedTo restricts to tickets assigned to this user. Combined with
	// IncludeUnassigned it expresses the agent view: own or unassigned,
	// never another agent's ticket.
	AssignedTo        *uuid.UUID
	IncludeUnassigned bool
	Status            *models.TicketStatus
	DepartmentID      *uuid.UUID
}

// KnowledgeFilters represents visibility filters for knowledge items
type KnowledgeFilters struct {
	BusinessID *uuid.UUID
	UserEmail  *string
	Status     *models.KnowledgeStatus
}

// DepartmentFilters represents visibility filters for departments
type DepartmentFilters struct {
	BusinessID *uuid.UUID
	UserEmail  *string
}

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
)

// MemoryStore implements Store backed by in-process maps. It is used by tests
// and for local development without a database. Transactions are not isolated:
// BeginTx returns the same store and Commit/Rollback are no-ops.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[uuid.UUID]*models.User
	businesses  map[uuid.UUID]*models.Business
	sessions    map[string]*models.Session
	mailTokens  map[uuid.UUID]*models.MailToken
	departments map[uuid.UUID]*models.Department
	knowledge   map[uuid.UUID]*models.KnowledgeItem
	tickets     map[uuid.UUID]*models.Ticket
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uuid.UUID]*models.User),
		businesses:  make(map[uuid.UUID]*models.Business),
		sessions:    make(map[string]*models.Session),
		mailTokens:  make(map[uuid.UUID]*models.MailToken),
		departments: make(map[uuid.UUID]*models.Department),
		knowledge:   make(map[uuid.UUID]*models.KnowledgeItem),
		tickets:     make(map[uuid.UUID]*models.Ticket),
	}
}

// BeginTx returns the store itself; the memory store has no isolation
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemoryStore) Rollback() error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// ========== User methods ==========

// CreateUser creates a new user
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicateKey
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

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser gets a user by ID
func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUsersByEmail returns all active user rows for an email, business-linked
// rows first, then earliest created
func (s *MemoryStore) GetUsersByEmail(ctx context.Context, email string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)

	var users []*models.User
	for _, user := range s.users {
		if user.Email == email && user.IsActive {
			cp := *user
			users = append(users, &cp)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if (a.BusinessID != nil) != (b.BusinessID != nil) {
			return a.BusinessID != nil
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return strings.Compare(a.ID.String(), b.ID.String()) < 0
	})

	return users, nil
}

// UpdateUser updates a user
func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}

	user.UpdatedAt = time.Now()
	user.Email = models.NormalizeEmail(user.Email)

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// DeleteUser deletes a user
func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ListUsers lists users
func (s *MemoryStore) ListUsers(ctx context.Context, businessID *uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, user := range s.users {
		if businessID != nil && (user.BusinessID == nil || *user.BusinessID != *businessID) {
			continue
		}
		cp := *user
		users = append(users, &cp)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	total := int64(len(users))
	return paginate(users, limit, offset), total, nil
}

// CountActiveUsers counts active members of a business, excluding one user
func (s *MemoryStore) CountActiveUsers(ctx context.Context, businessID uuid.UUID, excludeUserID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, user := range s.users {
		if user.IsActive && user.ID != excludeUserID &&
			user.BusinessID != nil && *user.BusinessID == businessID {
			count++
		}
	}
	return count, nil
}

// SetUserTenancy rewrites a user's business link and role
func (s *MemoryStore) SetUserTenancy(ctx context.Context, userID uuid.UUID, businessID *uuid.UUID, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}

	user.BusinessID = businessID
	user.Role = role
	user.UpdatedAt = time.Now()
	return nil
}

// ========== Business methods ==========

// GetBusiness gets a business by ID
func (s *MemoryStore) GetBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	business, ok := s.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *business
	return &cp, nil
}

// GetBusinessByEmail gets a business by its unique business email
func (s *MemoryStore) GetBusinessByEmail(ctx context.Context, email string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	business := s.findBusinessByEmail(models.NormalizeEmail(email))
	if business == nil {
		return nil, ErrNotFound
	}
	cp := *business
	return &cp, nil
}

func (s *MemoryStore) findBusinessByEmail(email string) *models.Business {
	for _, business := range s.businesses {
		if business.BusinessEmail == email {
			return business
		}
	}
	return nil
}

// UpsertBusinessByEmail inserts the business or loads the existing row for
// the same business email into it
func (s *MemoryStore) UpsertBusinessByEmail(ctx context.Context, business *models.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	business.BusinessEmail = models.NormalizeEmail(business.BusinessEmail)

	if existing := s.findBusinessByEmail(business.BusinessEmail); existing != nil {
		*business = *existing
		return nil
	}

	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	now := time.Now()
	business.CreatedAt = now
	business.UpdatedAt = now

	cp := *business
	s.businesses[business.ID] = &cp
	return nil
}

// DeleteBusiness deletes a business; already-gone is not an error
func (s *MemoryStore) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.businesses, id)
	return nil
}

// ========== Session methods ==========

// CreateSession creates a new session
func (s *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return ErrDuplicateKey
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.Email = models.NormalizeEmail(session.Email)

	cp := *session
	s.sessions[session.Token] = &cp
	return nil
}

// GetSession gets a session by token
func (s *MemoryStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// UpdateSessionBusiness rewrites the denormalized business id on a session
func (s *MemoryStore) UpdateSessionBusiness(ctx context.Context, token string, businessID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return ErrNotFound
	}
	session.BusinessID = businessID
	return nil
}

// DeleteSession deletes a session
func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry
func (s *MemoryStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	now := time.Now()
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// ========== Mail token methods ==========

// CreateMailToken creates a new mail token
func (s *MemoryStore) CreateMailToken(ctx context.Context, token *models.MailToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if _, ok := s.mailTokens[token.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now
	token.UserEmail = models.NormalizeEmail(token.UserEmail)

	cp := *token
	s.mailTokens[token.ID] = &cp
	return nil
}

// GetMailToken gets a mail token by ID
func (s *MemoryStore) GetMailToken(ctx context.Context, id uuid.UUID) (*models.MailToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.mailTokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *token
	return &cp, nil
}

// ListMailTokensByEmail lists mail tokens owned by an email
func (s *MemoryStore) ListMailTokensByEmail(ctx context.Context, email string) ([]*models.MailToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)

	var tokens []*models.MailToken
	for _, token := range s.mailTokens {
		if token.UserEmail == email {
			cp := *token
			tokens = append(tokens, &cp)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
	})

	return tokens, nil
}

// ReassignMailTokensByEmail moves tokens owned by the email to the business id
func (s *MemoryStore) ReassignMailTokensByEmail(ctx context.Context, email string, businessID *uuid.UUID, onlyUnassigned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = models.NormalizeEmail(email)

	for _, token := range s.mailTokens {
		if token.UserEmail != email {
			continue
		}
		if onlyUnassigned && token.BusinessID != nil {
			continue
		}
		token.BusinessID = businessID
		token.UpdatedAt = time.Now()
	}
	return nil
}

// DeleteMailToken deletes a mail token
func (s *MemoryStore) DeleteMailToken(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailTokens[id]; !ok {
		return ErrNotFound
	}
	delete(s.mailTokens, id)
	return nil
}

// ========== Department methods ==========

// CreateDepartment creates a new department
func (s *MemoryStore) CreateDepartment(ctx context.Context, dept *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}
	if _, ok := s.departments[dept.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	dept.CreatedAt = now
	dept.UpdatedAt = now

	cp := *dept
	s.departments[dept.ID] = &cp
	return nil
}

// GetDepartment gets a department by ID
func (s *MemoryStore) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dept, ok := s.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *dept
	return &cp, nil
}

// UpdateDepartment updates a department
func (s *MemoryStore) UpdateDepartment(ctx context.Context, dept *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[dept.ID]; !ok {
		return ErrNotFound
	}

	dept.UpdatedAt = time.Now()
	cp := *dept
	s.departments[dept.ID] = &cp
	return nil
}

// DeleteDepartment deletes a department
func (s *MemoryStore) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[id]; !ok {
		return ErrNotFound
	}
	delete(s.departments, id)
	return nil
}

// ListDepartments lists departments with visibility filters
func (s *MemoryStore) ListDepartments(ctx context.Context, filters DepartmentFilters, limit, offset int) ([]*models.Department, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var depts []*models.Department
	for _, dept := range s.departments {
		if filters.BusinessID != nil && (dept.BusinessID == nil || *dept.BusinessID != *filters.BusinessID) {
			continue
		}
		if filters.UserEmail != nil && dept.UserEmail != *filters.UserEmail {
			continue
		}
		cp := *dept
		depts = append(depts, &cp)
	}

	sort.Slice(depts, func(i, j int) bool {
		return depts[i].CreatedAt.Before(depts[j].CreatedAt)
	})

	total := int64(len(depts))
	return paginate(depts, limit, offset), total, nil
}

// ========== Knowledge methods ==========

// CreateKnowledgeItem creates a new knowledge item
func (s *MemoryStore) CreateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if _, ok := s.knowledge[item.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if item.Status == "" {
		item.Status = models.KnowledgePending
	}

	cp := *item
	s.knowledge[item.ID] = &cp
	return nil
}

// GetKnowledgeItem gets a knowledge item by ID
func (s *MemoryStore) GetKnowledgeItem(ctx context.Context, id uuid.UUID) (*models.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.knowledge[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

// UpdateKnowledgeItem updates a knowledge item
func (s *MemoryStore) UpdateKnowledgeItem(ctx context.Context, item *models.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.knowledge[item.ID]; !ok {
		return ErrNotFound
	}

	item.UpdatedAt = time.Now()
	cp := *item
	s.knowledge[item.ID] = &cp
	return nil
}

// DeleteKnowledgeItem deletes a knowledge item
func (s *MemoryStore) DeleteKnowledgeItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.knowledge[id]; !ok {
		return ErrNotFound
	}
	delete(s.knowledge, id)
	return nil
}

// ListKnowledgeItems lists knowledge items with visibility filters
func (s *MemoryStore) ListKnowledgeItems(ctx context.Context, filters KnowledgeFilters, limit, offset int) ([]*models.KnowledgeItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*models.KnowledgeItem
	for _, item := range s.knowledge {
		if filters.BusinessID != nil && (item.BusinessID == nil || *item.BusinessID != *filters.BusinessID) {
			continue
		}
		if filters.UserEmail != nil && item.UserEmail != *filters.UserEmail {
			continue
		}
		if filters.Status != nil && item.Status != *filters.Status {
			continue
		}
		cp := *item
		items = append(items, &cp)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := int64(len(items))
	return paginate(items, limit, offset), total, nil
}

// ========== Ticket methods ==========

// CreateTicket creates a new ticket
func (s *MemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if _, ok := s.tickets[ticket.ID]; ok {
		return ErrDuplicateKey
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

	cp := *ticket
	s.tickets[ticket.ID] = &cp
	return nil
}

// GetTicket gets a ticket by ID
func (s *MemoryStore) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ticket
	return &cp, nil
}

// UpdateTicket updates a ticket
func (s *MemoryStore) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticket.ID]; !ok {
		return ErrNotFound
	}

	ticket.UpdatedAt = time.Now()
	cp := *ticket
	s.tickets[ticket.ID] = &cp
	return nil
}

// DeleteTicket deletes a ticket
func (s *MemoryStore) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

// ListTickets lists tickets with visibility filters
func (s *MemoryStore) ListTickets(ctx context.Context, filters TicketFilters, limit, offset int) ([]*models.Ticket, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []*models.Ticket
	for _, ticket := range s.tickets {
		if filters.BusinessID != nil && (ticket.BusinessID == nil || *ticket.BusinessID != *filters.BusinessID) {
			continue
		}
		if filters.UserEmail != nil && ticket.UserEmail != *filters.UserEmail {
			continue
		}
		if filters.AssignedTo != nil {
			assignedToSelf := ticket.AssignedTo != nil && *ticket.AssignedTo == *filters.AssignedTo
			unassigned := ticket.AssignedTo == nil
			if !assignedToSelf && !(filters.IncludeUnassigned && unassigned) {
				continue
			}
		}
		if filters.Status != nil && ticket.Status != *filters.Status {
			continue
		}
		if filters.DepartmentID != nil && (ticket.DepartmentID == nil || *ticket.DepartmentID != *filters.DepartmentID) {
			continue
		}
		cp := *ticket
		tickets = append(tickets, &cp)
	}

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})

	total := int64(len(tickets))
	return paginate(tickets, limit, offset), total, nil
}

// paginate applies limit/offset to an already-sorted slice
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/models"
)

// visibleTicket reports whether a ticket falls inside the identity's
// visibility scope. Mirrors the list filter: tenancy match first, then the
// agent restriction to own-or-unassigned.
func visibleTicket(id account.Identity, t *models.Ticket) bool {
	if id.IsBusiness() {
		if !sameBusiness(id.BusinessID, t.BusinessID) {
			return false
		}
	} else if t.BusinessID != nil || !id.IsOwnEmail(t.UserEmail) {
		return false
	}

	if id.Role == models.RoleAgent {
		return t.AssignedTo == nil || *t.AssignedTo == id.UserID
	}
	return true
}

// HandleListTickets lists tickets inside the caller's visibility scope
func (s *RESTServer) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	filters := account.TicketScope(id)

	if v := r.URL.Query().Get("status"); v != "" {
		status := models.TicketStatus(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("department_id"); v != "" {
		deptID, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid department id")
			return
		}
		filters.DepartmentID = &deptID
	}

	limit, offset := parsePagination(r)
	tickets, total, err := s.store.ListTickets(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{TotalCount: total, Result: tickets})
}

// CreateTicketRequest is the payload for creating a ticket
type CreateTicketRequest struct {
	Subject       string                `json:"subject" validate:"required,max=256"`
	Body          string                `json:"body"`
	CustomerEmail string                `json:"customerEmail" validate:"required,email"`
	Priority      models.TicketPriority `json:"priority" validate:"oneof=low normal high urgent"`
	DepartmentID  *uuid.UUID            `json:"departmentId,omitempty"`
}

// HandleCreateTicket creates a ticket stamped with the caller's tenancy
func (s *RESTServer) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}

	ticket := &models.Ticket{
		Subject:       req.Subject,
		Body:          req.Body,
		Status:        models.TicketOpen,
		Priority:      req.Priority,
		CustomerEmail: models.NormalizeEmail(req.CustomerEmail),
		DepartmentID:  req.DepartmentID,
	}
	if id.IsBusiness() {
		ticket.BusinessID = id.BusinessID
	} else {
		ticket.UserEmail = models.NormalizeEmail(id.Email)
	}

	if err := s.store.CreateTicket(r.Context(), ticket); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ticket)
}

// loadScopedTicket loads a ticket and enforces the caller's visibility
// scope. Out-of-scope tickets read as not found, never as forbidden.
func (s *RESTServer) loadScopedTicket(w http.ResponseWriter, r *http.Request) (account.Identity, *models.Ticket, bool) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return account.Identity{}, nil, false
	}

	ticketID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid ticket id")
		return id, nil, false
	}

	ticket, err := s.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		s.respondCoreError(w, err)
		return id, nil, false
	}
	if !visibleTicket(id, ticket) {
		s.respondError(w, http.StatusNotFound, "not found")
		return id, nil, false
	}

	return id, ticket, true
}

// HandleGetTicket returns a single ticket
func (s *RESTServer) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	_, ticket, ok := s.loadScopedTicket(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, ticket)
}

// UpdateTicketRequest is the payload for updating a ticket
type UpdateTicketRequest struct {
	Subject      *string                `json:"subject,omitempty"`
	Body         *string                `json:"body,omitempty"`
	Status       *models.TicketStatus   `json:"status,omitempty"`
	Priority     *models.TicketPriority `json:"priority,omitempty"`
	DepartmentID *uuid.UUID             `json:"departmentId,omitempty"`
}

// HandleUpdateTicket updates a ticket inside the caller's scope
func (s *RESTServer) HandleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	_, ticket, ok := s.loadScopedTicket(w, r)
	if !ok {
		return
	}

	var req UpdateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Subject != nil {
		ticket.Subject = *req.Subject
	}
	if req.Body != nil {
		ticket.Body = *req.Body
	}
	if req.Status != nil {
		ticket.Status = *req.Status
	}
	if req.Priority != nil {
		ticket.Priority = *req.Priority
	}
	if req.DepartmentID != nil {
		ticket.DepartmentID = req.DepartmentID
	}

	if err := s.store.UpdateTicket(r.Context(), ticket); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ticket)
}

// AssignTicketRequest is the payload for ticket assignment. A null assignee
// returns the ticket to the unassigned pool.
type AssignTicketRequest struct {
	AssignedTo *uuid.UUID `json:"assignedTo"`
}

// HandleAssignTicket assigns a ticket. Managers assign freely inside their
// scope; agents may only claim an unassigned ticket for themselves.
func (s *RESTServer) HandleAssignTicket(w http.ResponseWriter, r *http.Request) {
	id, ticket, ok := s.loadScopedTicket(w, r)
	if !ok {
		return
	}

	var req AssignTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		if !errors.Is(err, account.ErrForbidden) {
			s.respondCoreError(w, err)
			return
		}
		selfClaim := req.AssignedTo != nil && *req.AssignedTo == id.UserID && ticket.AssignedTo == nil
		if !selfClaim {
			s.respondCoreError(w, err)
			return
		}
	}

	ticket.AssignedTo = req.AssignedTo
	if err := s.store.UpdateTicket(r.Context(), ticket); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ticket)
}

// HandleDeleteTicket deletes a ticket. Managers only.
func (s *RESTServer) HandleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ticket, ok := s.loadScopedTicket(w, r)
	if !ok {
		return
	}

	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	if err := s.store.DeleteTicket(r.Context(), ticket.ID); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

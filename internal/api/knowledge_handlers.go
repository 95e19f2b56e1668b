package api

import (
	"encoding/json"
	"net/http"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/models"
)

// knowledgeInScope reports whether a knowledge item belongs to the
// identity's tenancy.
func knowledgeInScope(id account.Identity, item *models.KnowledgeItem) bool {
	if id.IsBusiness() {
		return sameBusiness(id.BusinessID, item.BusinessID)
	}
	return item.BusinessID == nil && id.IsOwnEmail(item.UserEmail)
}

// HandleListKnowledge lists knowledge base items. The default view is
// published-only; ?all=true also returns pending items and is gated behind
// a manager role.
func (s *RESTServer) HandleListKnowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	includeAll := r.URL.Query().Get("all") == "true"
	if includeAll {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	filters := account.KnowledgeScope(id, includeAll)

	limit, offset := parsePagination(r)
	items, total, err := s.store.ListKnowledgeItems(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{TotalCount: total, Result: items})
}

// CreateKnowledgeRequest is the payload for creating a knowledge item
type CreateKnowledgeRequest struct {
	Title   string                 `json:"title" validate:"required,max=256"`
	Content string                 `json:"content" validate:"required"`
	Status  models.KnowledgeStatus `json:"status" validate:"oneof=published pending"`
}

// HandleCreateKnowledge creates a knowledge item. Items start pending;
// creating one directly as published requires a manager role.
func (s *RESTServer) HandleCreateKnowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status == "" {
		req.Status = models.KnowledgePending
	}
	if req.Status == models.KnowledgePublished {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	item := &models.KnowledgeItem{
		Title:     req.Title,
		Content:   req.Content,
		Status:    req.Status,
		CreatedBy: id.UserID,
	}
	if id.IsBusiness() {
		item.BusinessID = id.BusinessID
	} else {
		item.UserEmail = models.NormalizeEmail(id.Email)
	}

	if err := s.store.CreateKnowledgeItem(r.Context(), item); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, item)
}

// loadScopedKnowledge loads a knowledge item and enforces tenancy scope. A
// pending item is only visible to its creator and managers.
func (s *RESTServer) loadScopedKnowledge(w http.ResponseWriter, r *http.Request) (account.Identity, *models.KnowledgeItem, bool) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return account.Identity{}, nil, false
	}

	itemID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid knowledge item id")
		return id, nil, false
	}

	item, err := s.store.GetKnowledgeItem(r.Context(), itemID)
	if err != nil {
		s.respondCoreError(w, err)
		return id, nil, false
	}
	if !knowledgeInScope(id, item) {
		s.respondError(w, http.StatusNotFound, "not found")
		return id, nil, false
	}

	if item.Status != models.KnowledgePublished && !id.IsSelf(item.CreatedBy) {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return id, nil, false
		}
	}

	return id, item, true
}

// HandleGetKnowledge returns a single knowledge item
func (s *RESTServer) HandleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	_, item, ok := s.loadScopedKnowledge(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

// UpdateKnowledgeRequest is the payload for updating a knowledge item
type UpdateKnowledgeRequest struct {
	Title   *string                 `json:"title,omitempty"`
	Content *string                 `json:"content,omitempty"`
	Status  *models.KnowledgeStatus `json:"status,omitempty"`
}

// HandleUpdateKnowledge updates a knowledge item. Changing the review status
// requires a manager role; content edits are open to the creator too.
func (s *RESTServer) HandleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	id, item, ok := s.loadScopedKnowledge(w, r)
	if !ok {
		return
	}

	var req UpdateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !id.IsSelf(item.CreatedBy) {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	if req.Status != nil && *req.Status != item.Status {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
		item.Status = *req.Status
	}
	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Content != nil {
		item.Content = *req.Content
	}

	if err := s.store.UpdateKnowledgeItem(r.Context(), item); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

// HandleDeleteKnowledge deletes a knowledge item. Open to the creator and
// to managers.
func (s *RESTServer) HandleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id, item, ok := s.loadScopedKnowledge(w, r)
	if !ok {
		return
	}

	if !id.IsSelf(item.CreatedBy) {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	if err := s.store.DeleteKnowledgeItem(r.Context(), item.ID); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

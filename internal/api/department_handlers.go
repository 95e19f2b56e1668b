package api

import (
	"encoding/json"
	"net/http"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/models"
)

// departmentInScope reports whether a department belongs to the identity's
// tenancy.
func departmentInScope(id account.Identity, dept *models.Department) bool {
	if id.IsBusiness() {
		return sameBusiness(id.BusinessID, dept.BusinessID)
	}
	return dept.BusinessID == nil && id.IsOwnEmail(dept.UserEmail)
}

// HandleListDepartments lists departments inside the caller's tenancy
func (s *RESTServer) HandleListDepartments(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	filters := account.DepartmentScope(id)

	limit, offset := parsePagination(r)
	depts, total, err := s.store.ListDepartments(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{TotalCount: total, Result: depts})
}

// DepartmentRequest is the payload for creating or updating a department
type DepartmentRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=512"`
}

// HandleCreateDepartment creates a department in the caller's tenancy.
// Managers only.
func (s *RESTServer) HandleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	var req DepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dept := &models.Department{
		Name:        req.Name,
		Description: req.Description,
	}
	if id.IsBusiness() {
		dept.BusinessID = id.BusinessID
	} else {
		dept.UserEmail = models.NormalizeEmail(id.Email)
	}

	if err := s.store.CreateDepartment(r.Context(), dept); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, dept)
}

// loadScopedDepartment loads a department and enforces tenancy scope
func (s *RESTServer) loadScopedDepartment(w http.ResponseWriter, r *http.Request) (account.Identity, *models.Department, bool) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return account.Identity{}, nil, false
	}

	deptID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid department id")
		return id, nil, false
	}

	dept, err := s.store.GetDepartment(r.Context(), deptID)
	if err != nil {
		s.respondCoreError(w, err)
		return id, nil, false
	}
	if !departmentInScope(id, dept) {
		s.respondError(w, http.StatusNotFound, "not found")
		return id, nil, false
	}

	return id, dept, true
}

// HandleGetDepartment returns a single department
func (s *RESTServer) HandleGetDepartment(w http.ResponseWriter, r *http.Request) {
	_, dept, ok := s.loadScopedDepartment(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, dept)
}

// HandleUpdateDepartment updates a department. Managers only.
func (s *RESTServer) HandleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, dept, ok := s.loadScopedDepartment(w, r)
	if !ok {
		return
	}
	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	var req DepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dept.Name = req.Name
	dept.Description = req.Description

	if err := s.store.UpdateDepartment(r.Context(), dept); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, dept)
}

// HandleDeleteDepartment deletes a department. Managers only.
func (s *RESTServer) HandleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, dept, ok := s.loadScopedDepartment(w, r)
	if !ok {
		return
	}
	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	if err := s.store.DeleteDepartment(r.Context(), dept.ID); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

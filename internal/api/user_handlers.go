package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

// HandleGetCurrentUser returns the caller's own user record
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

// HandleListUsers lists the members of the caller's tenancy. A personal
// account has exactly one member: itself.
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if !id.IsBusiness() {
		user, err := s.store.GetUser(r.Context(), id.UserID)
		if err != nil {
			s.respondCoreError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, listResponse{TotalCount: 1, Result: []*models.User{user}})
		return
	}

	limit, offset := parsePagination(r)
	users, total, err := s.store.ListUsers(r.Context(), id.BusinessID, limit, offset)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{TotalCount: total, Result: users})
}

// CreateUserRequest is the payload for creating a teammate
type CreateUserRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Name     string      `json:"name" validate:"required,max=128"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     models.Role `json:"role" validate:"oneof=admin manager agent"`
}

// HandleCreateUser creates a teammate inside the caller's business. Only
// admins and managers may invite, and only business tenancies have teammates.
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if !id.IsBusiness() {
		s.respondError(w, http.StatusForbidden, "personal accounts have no teammates")
		return
	}
	if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAgent
	}

	email := models.NormalizeEmail(req.Email)
	info, err := s.resolver.Resolve(r.Context(), email)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if info.Exists {
		s.respondError(w, http.StatusConflict, "account already exists")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	user := &models.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		BusinessID:   id.BusinessID,
		IsActive:     true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.respondCoreError(w, err)
		return
	}

	log.Info().
		Str("email", email).
		Str("business_id", id.BusinessID.String()).
		Msg("Teammate created")
	s.respondJSON(w, http.StatusCreated, user)
}

// loadScopedUser loads a target user and checks the caller may see it:
// themselves always, teammates only through a manager role.
func (s *RESTServer) loadScopedUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}

	userID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		s.respondCoreError(w, err)
		return nil, false
	}

	if !id.IsSelf(user.ID) {
		if !id.IsBusiness() || !sameBusiness(id.BusinessID, user.BusinessID) {
			s.respondError(w, http.StatusNotFound, "not found")
			return nil, false
		}
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return nil, false
		}
	}

	return user, true
}

// HandleGetUser returns a single user
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.loadScopedUser(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

// UpdateUserRequest is the payload for updating a user's profile
type UpdateUserRequest struct {
	Name     *string           `json:"name,omitempty"`
	Password *string           `json:"password,omitempty"`
	IsActive *bool             `json:"isActive,omitempty"`
	Settings *models.Variables `json:"settings,omitempty"`
}

// HandleUpdateUser updates a user's profile. Activation state can only be
// changed by a manager, never through self-service.
func (s *RESTServer) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r)
	user, ok := s.loadScopedUser(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			s.respondError(w, http.StatusBadRequest, "password too short")
			return
		}
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			s.respondCoreError(w, err)
			return
		}
		user.PasswordHash = hash
	}
	if req.IsActive != nil {
		if id.IsSelf(user.ID) {
			s.respondError(w, http.StatusForbidden, "cannot change own activation state")
			return
		}
		user.IsActive = *req.IsActive
	}
	if req.Settings != nil {
		user.Settings = *req.Settings
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

// UpdateUserRoleRequest is the payload for a role change
type UpdateUserRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=admin manager agent"`
}

// HandleUpdateUserRole changes a teammate's role. Admin only; the change is
// effective on the target's next request because permission checks re-read
// the role every time.
func (s *RESTServer) HandleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := s.checker.RequireAdmin(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	userID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Role.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if !sameBusiness(id.BusinessID, user.BusinessID) {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	user.Role = req.Role
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.respondCoreError(w, err)
		return
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(req.Role)).
		Msg("User role updated")
	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser removes a teammate from the business. Admin only, and an
// admin cannot delete themselves; they downgrade instead.
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := s.checker.RequireAdmin(r.Context(), id.UserID); err != nil {
		s.respondCoreError(w, err)
		return
	}

	userID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if id.IsSelf(userID) {
		s.respondError(w, http.StatusBadRequest, "cannot delete own account")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if !sameBusiness(id.BusinessID, user.BusinessID) {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.store.DeleteUser(r.Context(), userID); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

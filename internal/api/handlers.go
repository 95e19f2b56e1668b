package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

// respondJSON writes a JSON response
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// respondError writes a JSON error response
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondCoreError maps core error kinds to transport status codes
func (s *RESTServer) respondCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrUnauthenticated):
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, account.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, account.ErrAlreadyInTenancy):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrTeammatesExist):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		s.respondError(w, http.StatusConflict, "already exists")
	default:
		log.Error().Err(err).Msg("Internal error")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// parsePagination parses limit and offset query parameters
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// listResponse is the envelope for paginated list endpoints
type listResponse struct {
	TotalCount int64       `json:"totalCount"`
	Result     interface{} `json:"result"`
}

// HandleHealth returns server health status
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRoot returns basic server info
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"name":    "maildesk-server",
		"version": "1.0.0",
	})
}

// tokenResponse is the payload returned by login, register and refresh
type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	SessionToken string       `json:"sessionToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *models.User `json:"user"`
}

func (s *RESTServer) issueTokens(w http.ResponseWriter, r *http.Request, user *models.User) {
	session, err := s.auth.NewSession(user)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.respondCoreError(w, err)
		return
	}

	accessToken, err := s.auth.GenerateAccessToken(user, session.Token)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		SessionToken: session.Token,
		ExpiresIn:    int64(s.auth.AccessTokenTTL().Seconds()),
		User:         user,
	})
}

// RegisterRequest is the payload for user registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=128"`
}

// HandleRegister creates a personal account with a password
func (s *RESTServer) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
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
		Role:         models.RoleAgent,
		IsActive:     true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.respondCoreError(w, err)
		return
	}

	log.Info().Str("email", email).Msg("User registered")
	s.issueTokens(w, r, user)
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles password login. The canonical account for the email is
// chosen with the same tie-break as resolution, so a business seat always
// wins over a personal row sharing the address.
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := s.store.GetUsersByEmail(r.Context(), models.NormalizeEmail(req.Email))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	user := account.PrimaryAccount(users)
	if user == nil || !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Msg("Failed to record last login")
	}

	s.issueTokens(w, r, user)
}

// GoogleLoginRequest is the payload for Google OAuth login. The email is
// assumed verified by the OAuth exchange upstream.
type GoogleLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=128"`
}

// HandleGoogleLogin handles Google OAuth login, creating the account on
// first login. A business seat holding a real password must use password
// login instead.
func (s *RESTServer) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := models.NormalizeEmail(req.Email)
	allowed, err := s.resolver.CanLoginWithGoogle(r.Context(), email)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if !allowed {
		s.respondError(w, http.StatusForbidden, "this account requires password login")
		return
	}

	users, err := s.store.GetUsersByEmail(r.Context(), email)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	user := account.PrimaryAccount(users)
	if user == nil {
		user = &models.User{
			Email:         email,
			Name:          req.Name,
			PasswordHash:  models.GoogleOAuthSentinel,
			Role:          models.RoleAgent,
			IsActive:      true,
			EmailVerified: true,
		}
		if err := s.store.CreateUser(r.Context(), user); err != nil {
			s.respondCoreError(w, err)
			return
		}
		log.Info().Str("email", email).Msg("User created via Google OAuth")
	} else if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Msg("Failed to record last login")
	}

	s.issueTokens(w, r, user)
}

// RefreshRequest is the payload for access token refresh
type RefreshRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

// HandleRefresh exchanges a live session for a fresh access token. The
// session's tenancy is reconciled against the user row first, so a token
// refreshed after a migration carries the new business id.
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.store.GetSession(r.Context(), req.SessionToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusUnauthorized, "session revoked")
			return
		}
		s.respondCoreError(w, err)
		return
	}
	if session.Expired() {
		s.respondError(w, http.StatusUnauthorized, "session expired")
		return
	}

	user, err := account.ReconcileSession(r.Context(), s.store, session)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	accessToken, err := s.auth.GenerateAccessToken(user, session.Token)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		SessionToken: session.Token,
		ExpiresIn:    int64(s.auth.AccessTokenTTL().Seconds()),
		User:         user,
	})
}

// HandleLogout revokes the current session
func (s *RESTServer) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := s.store.DeleteSession(r.Context(), id.SessionToken); err != nil &&
		!errors.Is(err, storage.ErrNotFound) {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleGetAccount resolves an email to its canonical account. Without an
// email parameter it resolves the caller's own address; resolving someone
// else's requires a manager role.
func (s *RESTServer) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		email = id.Email
	}
	if !id.IsOwnEmail(email) {
		if err := s.checker.RequireManager(r.Context(), id.UserID); err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	info, err := s.resolver.Resolve(r.Context(), email)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

// HandleUpgradeAccount migrates the caller's personal account to a business
func (s *RESTServer) HandleUpgradeAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	business, err := s.migrator.Upgrade(r.Context(), id)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, business)
}

// HandleDowngradeAccount migrates the caller back to a personal account
func (s *RESTServer) HandleDowngradeAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := s.migrator.Downgrade(r.Context(), id); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "downgraded"})
}

// idParam parses the {id} URL parameter
func idParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// sameBusiness reports whether both business ids are nil or both equal
func sameBusiness(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

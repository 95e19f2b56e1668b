package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

// HandleListMailTokens lists the caller's mailbox credentials. Token
// material is never returned, only metadata.
func (s *RESTServer) HandleListMailTokens(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	tokens, err := s.store.ListMailTokensByEmail(r.Context(), models.NormalizeEmail(id.Email))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{TotalCount: int64(len(tokens)), Result: tokens})
}

// CreateMailTokenRequest is the payload for connecting a mailbox
type CreateMailTokenRequest struct {
	Provider     models.MailProvider `json:"provider" validate:"required,oneof=gmail outlook imap"`
	AccessToken  string              `json:"accessToken" validate:"required"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
}

// HandleCreateMailToken stores a mailbox credential for the caller. The
// credential is keyed by the caller's email and attached to their current
// tenancy; token material is encrypted at rest.
func (s *RESTServer) HandleCreateMailToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if s.tokenKey == nil {
		s.respondError(w, http.StatusServiceUnavailable, "mail token storage is not configured")
		return
	}

	var req CreateMailTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	accessToken, err := crypto.EncryptString(s.tokenKey, req.AccessToken)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	refreshToken := ""
	if req.RefreshToken != "" {
		refreshToken, err = crypto.EncryptString(s.tokenKey, req.RefreshToken)
		if err != nil {
			s.respondCoreError(w, err)
			return
		}
	}

	token := &models.MailToken{
		UserEmail:    models.NormalizeEmail(id.Email),
		BusinessID:   id.BusinessID,
		Provider:     req.Provider,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := s.store.CreateMailToken(r.Context(), token); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, token)
}

// HandleDeleteMailToken disconnects a mailbox. Only the owning user may
// delete their credential.
func (s *RESTServer) HandleDeleteMailToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	tokenID, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	token, err := s.store.GetMailToken(r.Context(), tokenID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if !id.IsOwnEmail(token.UserEmail) {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.store.DeleteMailToken(r.Context(), tokenID); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

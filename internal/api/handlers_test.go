package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/maildesk/maildesk-server/internal/config"
	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

const testTokenKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestServer(t *testing.T) (*RESTServer, *storage.MemoryStore) {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.SessionTTL = 24 * time.Hour
	cfg.Crypto.TokenKey = testTokenKey

	store := storage.NewMemoryStore()
	server, err := NewRESTServer(cfg, store, nil)
	require.NoError(t, err)

	return server, store
}

func doJSON(t *testing.T, s *RESTServer, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func register(t *testing.T, s *RESTServer, email, password, name string) tokenResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email:    email,
		Password: password,
		Name:     name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeTokens(t, rec)
}

func login(t *testing.T, s *RESTServer, email, password string) tokenResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeTokens(t, rec)
}

func TestRegisterAndLogin(t *testing.T) {
	s, _ := newTestServer(t)

	tokens := register(t, s, "Alice@Example.com", "password123", "Alice")
	require.Equal(t, "alice@example.com", tokens.User.Email)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.SessionToken)

	t.Run("duplicate email rejected", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
			Email:    "alice@example.com",
			Password: "password456",
			Name:     "Other Alice",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("login with normalized email", func(t *testing.T) {
		tokens := login(t, s, "  ALICE@example.com ", "password123")
		require.Equal(t, "alice@example.com", tokens.User.Email)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
			Email:    "alice@example.com",
			Password: "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t)
	tokens := register(t, s, "bob@example.com", "password123", "Bob")

	t.Run("missing token", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/users/me", tokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token rejected after logout", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/logout", tokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodGet, "/api/v1/users/me", tokens.AccessToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUpgradeDowngradeFlow(t *testing.T) {
	s, _ := newTestServer(t)
	tokens := register(t, s, "owner@example.com", "password123", "Owner")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/account/upgrade", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var business models.Business
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&business))
	require.Equal(t, "owner@example.com", business.BusinessEmail)

	// The session was re-scoped in the migration, so the same access token
	// now resolves to a business admin identity.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/users/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	require.Equal(t, models.RoleAdmin, me.Role)
	require.NotNil(t, me.BusinessID)
	require.Equal(t, business.ID, *me.BusinessID)

	t.Run("double upgrade conflicts", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/account/upgrade", tokens.AccessToken, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	rec = doJSON(t, s, http.MethodPost, "/api/v1/users/", tokens.AccessToken, CreateUserRequest{
		Email:    "teammate@example.com",
		Name:     "Teammate",
		Password: "password123",
		Role:     models.RoleAgent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var teammate models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&teammate))
	require.Equal(t, business.ID, *teammate.BusinessID)

	t.Run("downgrade blocked by teammates", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/account/downgrade", tokens.AccessToken, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/users/%s", teammate.ID), tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/account/downgrade", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/v1/users/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// Decode into a fresh struct: BusinessID is omitempty, so decoding into
	// the previously populated value would keep the stale pointer.
	me = models.User{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	require.Nil(t, me.BusinessID)
	require.Equal(t, models.RoleAgent, me.Role)
}

func TestGoogleLoginRules(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("new account created on first login", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/google", "", GoogleLoginRequest{
			Email: "fresh@example.com",
			Name:  "Fresh",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		tokens := decodeTokens(t, rec)
		require.False(t, tokens.User.HasPassword())
	})

	t.Run("personal password account may use google", func(t *testing.T) {
		register(t, s, "personal@example.com", "password123", "Personal")
		rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/google", "", GoogleLoginRequest{
			Email: "personal@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("business seat with password must use password login", func(t *testing.T) {
		tokens := register(t, s, "seat@example.com", "password123", "Seat")
		rec := doJSON(t, s, http.MethodPost, "/api/v1/account/upgrade", tokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/google", "", GoogleLoginRequest{
			Email: "seat@example.com",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAccountResolution(t *testing.T) {
	s, _ := newTestServer(t)
	tokens := register(t, s, "resolve@example.com", "password123", "Resolver")

	rec := doJSON(t, s, http.MethodGet, "/api/v1/account/", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	require.Equal(t, true, info["exists"])
	require.Equal(t, "personal", info["accountType"])
	require.Equal(t, true, info["hasPassword"])

	t.Run("resolving another email requires manager", func(t *testing.T) {
		register(t, s, "other@example.com", "password123", "Other")
		rec := doJSON(t, s, http.MethodGet, "/api/v1/account/?email=other@example.com", tokens.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

// upgradeToBusiness registers an owner, upgrades it and invites an agent.
func upgradeToBusiness(t *testing.T, s *RESTServer) (admin tokenResponse, agent tokenResponse) {
	t.Helper()

	admin = register(t, s, "admin@corp.example.com", "password123", "Admin")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/account/upgrade", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/v1/users/", admin.AccessToken, CreateUserRequest{
		Email:    "agent@corp.example.com",
		Name:     "Agent",
		Password: "password123",
		Role:     models.RoleAgent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	agent = login(t, s, "agent@corp.example.com", "password123")
	return admin, agent
}

func TestTicketVisibility(t *testing.T) {
	s, _ := newTestServer(t)
	admin, agent := upgradeToBusiness(t, s)

	createTicket := func(subject string) models.Ticket {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/tickets/", admin.AccessToken, CreateTicketRequest{
			Subject:       subject,
			CustomerEmail: "customer@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var ticket models.Ticket
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&ticket))
		return ticket
	}

	unassigned := createTicket("unassigned")
	mine := createTicket("assigned to agent")
	other := createTicket("assigned to someone else")

	assign := func(ticketID, userID uuid.UUID) {
		rec := doJSON(t, s, http.MethodPut,
			fmt.Sprintf("/api/v1/tickets/%s/assign", ticketID),
			admin.AccessToken, AssignTicketRequest{AssignedTo: &userID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assign(mine.ID, agent.User.ID)
	assign(other.ID, admin.User.ID)

	t.Run("admin sees all tickets", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/tickets/", admin.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			TotalCount int64           `json:"totalCount"`
			Result     []models.Ticket `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, int64(3), resp.TotalCount)
	})

	t.Run("agent sees own and unassigned only", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/tickets/", agent.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			TotalCount int64           `json:"totalCount"`
			Result     []models.Ticket `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, int64(2), resp.TotalCount)
		for _, ticket := range resp.Result {
			require.NotEqual(t, other.ID, ticket.ID)
		}
	})

	t.Run("agent cannot read another agent's ticket", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet,
			fmt.Sprintf("/api/v1/tickets/%s", other.ID), agent.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("agent can claim an unassigned ticket", func(t *testing.T) {
		agentID := agent.User.ID
		rec := doJSON(t, s, http.MethodPut,
			fmt.Sprintf("/api/v1/tickets/%s/assign", unassigned.ID),
			agent.AccessToken, AssignTicketRequest{AssignedTo: &agentID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("agent cannot assign to someone else", func(t *testing.T) {
		adminID := admin.User.ID
		rec := doJSON(t, s, http.MethodPut,
			fmt.Sprintf("/api/v1/tickets/%s/assign", mine.ID),
			agent.AccessToken, AssignTicketRequest{AssignedTo: &adminID})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("agent cannot delete tickets", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete,
			fmt.Sprintf("/api/v1/tickets/%s", mine.ID), agent.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("personal user sees no business tickets", func(t *testing.T) {
		outsider := register(t, s, "outsider@example.com", "password123", "Outsider")
		rec := doJSON(t, s, http.MethodGet, "/api/v1/tickets/", outsider.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			TotalCount int64 `json:"totalCount"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, int64(0), resp.TotalCount)
	})
}

func TestKnowledgeGating(t *testing.T) {
	s, _ := newTestServer(t)
	admin, agent := upgradeToBusiness(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/knowledge/", agent.AccessToken, CreateKnowledgeRequest{
		Title:   "Draft article",
		Content: "Pending content",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pending models.KnowledgeItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pending))
	require.Equal(t, models.KnowledgePending, pending.Status)

	t.Run("agent cannot create published directly", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/knowledge/", agent.AccessToken, CreateKnowledgeRequest{
			Title:   "Sneaky",
			Content: "Content",
			Status:  models.KnowledgePublished,
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("agent cannot list all", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/knowledge/?all=true", agent.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("default list hides pending", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/knowledge/", agent.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			TotalCount int64 `json:"totalCount"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, int64(0), resp.TotalCount)
	})

	t.Run("admin publishes via status update", func(t *testing.T) {
		published := models.KnowledgePublished
		rec := doJSON(t, s, http.MethodPut,
			fmt.Sprintf("/api/v1/knowledge/%s", pending.ID),
			admin.AccessToken, UpdateKnowledgeRequest{Status: &published})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = doJSON(t, s, http.MethodGet, "/api/v1/knowledge/", agent.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			TotalCount int64 `json:"totalCount"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, int64(1), resp.TotalCount)
	})

	t.Run("agent cannot change status", func(t *testing.T) {
		status := models.KnowledgePending
		rec := doJSON(t, s, http.MethodPut,
			fmt.Sprintf("/api/v1/knowledge/%s", pending.ID),
			agent.AccessToken, UpdateKnowledgeRequest{Status: &status})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestMailTokens(t *testing.T) {
	s, store := newTestServer(t)
	tokens := register(t, s, "mail@example.com", "password123", "Mail")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/mail-tokens/", tokens.AccessToken, CreateMailTokenRequest{
		Provider:    models.ProviderGmail,
		AccessToken: "plaintext-access-token",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.MailToken
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.Equal(t, "mail@example.com", created.UserEmail)

	t.Run("token material encrypted at rest", func(t *testing.T) {
		stored, err := store.GetMailToken(context.Background(), created.ID)
		require.NoError(t, err)
		require.NotEqual(t, "plaintext-access-token", stored.AccessToken)

		key, err := crypto.ParseKey(testTokenKey)
		require.NoError(t, err)
		plaintext, err := crypto.DecryptString(key, stored.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "plaintext-access-token", plaintext)
	})

	t.Run("another user cannot delete it", func(t *testing.T) {
		other := register(t, s, "other-mail@example.com", "password123", "Other")
		rec := doJSON(t, s, http.MethodDelete,
			fmt.Sprintf("/api/v1/mail-tokens/%s", created.ID), other.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner deletes it", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete,
			fmt.Sprintf("/api/v1/mail-tokens/%s", created.ID), tokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRefreshReconcilesTenancy(t *testing.T) {
	s, _ := newTestServer(t)
	tokens := register(t, s, "refresh@example.com", "password123", "Refresh")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/account/upgrade", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{
		SessionToken: tokens.SessionToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	refreshed := decodeTokens(t, rec)
	require.NotNil(t, refreshed.User.BusinessID)
	require.Equal(t, models.RoleAdmin, refreshed.User.Role)
}

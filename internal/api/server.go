package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/auth"
	"github.com/maildesk/maildesk-server/internal/config"
	"github.com/maildesk/maildesk-server/internal/storage"
	"github.com/maildesk/maildesk-server/internal/validation"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	auth      *auth.JWTManager
	validator *validation.Validator

	resolver *account.Resolver
	checker  *account.Checker
	migrator *account.Migrator

	// tokenKey encrypts mailbox credentials at rest; nil disables the
	// mail token endpoints.
	tokenKey []byte

	router chi.Router
	server *http.Server
}

// NewRESTServer creates a new REST API server. events may be nil when NATS
// is not configured.
func NewRESTServer(cfg *config.Config, store storage.Store, events account.EventPublisher) (*RESTServer, error) {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		auth:      auth.NewJWTManager(&cfg.JWT),
		validator: validation.NewValidator(),
		resolver:  account.NewResolver(store),
		checker:   account.NewChecker(store),
		migrator:  account.NewMigrator(store, events),
		router:    chi.NewRouter(),
	}

	if cfg.Crypto.TokenKey != "" {
		key, err := crypto.ParseKey(cfg.Crypto.TokenKey)
		if err != nil {
			return nil, err
		}
		s.tokenKey = key
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// Router exposes the configured router, mostly for tests
func (s *RESTServer) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// identityKey is the context key the auth middleware stores the identity under
type identityKey struct{}

// identityFrom extracts the request identity placed by authMiddleware
func identityFrom(r *http.Request) (account.Identity, bool) {
	id, ok := r.Context().Value(identityKey{}).(account.Identity)
	return id, ok
}

// authMiddleware resolves the request identity. It validates the bearer
// token, loads the bound session, reconciles the session's tenancy against
// the user row and passes the resulting identity explicitly via context.
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		session, err := s.store.GetSession(r.Context(), claims.SessionToken)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.respondError(w, http.StatusUnauthorized, "session revoked")
				return
			}
			s.respondError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}

		if session.Expired() {
			s.respondError(w, http.StatusUnauthorized, "session expired")
			return
		}

		// Self-heal a session left out of sync by a partial migration; the
		// user row is the source of truth for tenancy.
		user, err := account.ReconcileSession(r.Context(), s.store, session)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "identity resolution failed")
			return
		}

		if !user.IsActive {
			s.respondError(w, http.StatusForbidden, "account is disabled")
			return
		}

		id := account.Identity{
			UserID:       user.ID,
			Email:        user.Email,
			Role:         user.Role,
			BusinessID:   user.BusinessID,
			SessionToken: session.Token,
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

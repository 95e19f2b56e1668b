package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.HandleRegister)
		r.Post("/login", s.HandleLogin)
		r.Post("/google", s.HandleGoogleLogin)
		r.Post("/refresh", s.HandleRefresh)
		r.With(s.authMiddleware).Post("/logout", s.HandleLogout)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Account resolution and tenancy
		r.Route("/account", func(r chi.Router) {
			r.Get("/", s.HandleGetAccount)
			r.Post("/upgrade", s.HandleUpgradeAccount)
			r.Post("/downgrade", s.HandleDowngradeAccount)
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Put("/role", s.HandleUpdateUserRole)
				r.Delete("/", s.HandleDeleteUser)
			})
		})

		// Tickets
		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", s.HandleListTickets)
			r.Post("/", s.HandleCreateTicket)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTicket)
				r.Put("/", s.HandleUpdateTicket)
				r.Put("/assign", s.HandleAssignTicket)
				r.Delete("/", s.HandleDeleteTicket)
			})
		})

		// Knowledge base
		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", s.HandleListKnowledge)
			r.Post("/", s.HandleCreateKnowledge)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetKnowledge)
				r.Put("/", s.HandleUpdateKnowledge)
				r.Delete("/", s.HandleDeleteKnowledge)
			})
		})

		// Departments
		r.Route("/departments", func(r chi.Router) {
			r.Get("/", s.HandleListDepartments)
			r.Post("/", s.HandleCreateDepartment)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetDepartment)
				r.Put("/", s.HandleUpdateDepartment)
				r.Delete("/", s.HandleDeleteDepartment)
			})
		})

		// Mail tokens
		r.Route("/mail-tokens", func(r chi.Router) {
			r.Get("/", s.HandleListMailTokens)
			r.Post("/", s.HandleCreateMailToken)
			r.Delete("/{id}", s.HandleDeleteMailToken)
		})
	})
}

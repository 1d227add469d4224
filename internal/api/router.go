package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required; refresh authenticates via
		// the refresh token itself)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// WebSocket authenticates via a single-use ticket rather than a
		// bearer header, which browsers cannot set on socket dials
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			// WS ticket requires authentication so the ticket can carry
			// the caller's identity onto the socket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Entity state endpoints
			r.Route("/states", func(r chi.Router) {
				r.Get("/", s.handleListStates)
				r.Get("/{entity_id}", s.handleGetState)
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.With(s.requirePermission(auth.PermDeviceManage)).Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.With(s.requirePermission(auth.PermDeviceManage)).Patch("/", s.handleUpdateDevice)
					r.With(s.requirePermission(auth.PermDeviceManage)).Delete("/", s.handleDeleteDevice)

					// Device automation capabilities
					r.Get("/triggers", s.handleDeviceTriggers)
					r.Get("/conditions", s.handleDeviceConditions)
					r.Get("/actions", s.handleDeviceActions)
				})
			})

			// Automation endpoints
			r.Route("/automations", func(r chi.Router) {
				r.Get("/", s.handleListAutomations)
				r.With(s.requirePermission(auth.PermAutomationManage)).Post("/", s.handleCreateAutomation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAutomation)
					r.With(s.requirePermission(auth.PermAutomationManage)).Patch("/", s.handleUpdateAutomation)
					r.With(s.requirePermission(auth.PermAutomationManage)).Delete("/", s.handleDeleteAutomation)
					r.With(s.requirePermission(auth.PermServiceCall)).Post("/trigger", s.handleTriggerAutomation)
					r.With(s.requirePermission(auth.PermAutomationManage)).Post("/enable", s.handleEnableAutomation)
					r.With(s.requirePermission(auth.PermAutomationManage)).Post("/disable", s.handleDisableAutomation)
				})
			})

			// Service endpoints
			r.Route("/services", func(r chi.Router) {
				r.Get("/", s.handleListServices)
				r.With(s.requirePermission(auth.PermServiceCall)).
					Post("/{domain}/{service}", s.handleCallService)
			})

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserManage))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
					r.Put("/password", s.handleSetUserPassword)
				})
			})

			// System info
			r.Get("/system", s.handleSystemInfo)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

package server

import (
	"net/http"
	"time"

	"adwatch/internal/domain"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	r := s.router

	// Health check endpoint
	r.Get("/health", s.handleHealth)

	// Public pages
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLoginForm)
	r.Get("/logout", s.handleLogoutPage)

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(s.pageAuthMiddleware)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/watch/{id}", s.handleWatchPage)
	})

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.apiRegister)
		r.Post("/auth/login", s.apiLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.apiLogout)

			// Catalog
			r.Get("/ads", s.apiListAds)
			r.Post("/ads", s.apiCreateAd)
			r.Get("/ads/{id}", s.apiGetAd)

			// Viewer state
			r.Get("/me/views", s.apiListViews)
			r.Get("/me/quota", s.apiGetQuota)

			// Viewing sessions
			r.Post("/ads/{id}/sessions", s.apiOpenSession)
			r.Get("/sessions/{sid}", s.apiGetSession)
			r.Post("/sessions/{sid}/events", s.apiSessionEvent)
			r.Get("/sessions/{sid}/code.png", s.apiSessionCodeQR)
			r.Post("/sessions/{sid}/close", s.apiCloseSession)
			r.Post("/sessions/{sid}/verify", s.apiVerifySession)
			r.Delete("/sessions/{sid}", s.apiDiscardSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.roleMiddleware(domain.RoleAdmin))

			r.Post("/admin/users/{id}/quota/reset", s.apiResetQuota)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found", "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"sessions":  s.sessions.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

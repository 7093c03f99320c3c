package web

import (
	"encoding/json"
	"net/http"

	"github.com/buemura/scanhub/internal/web/api"
	"github.com/go-chi/chi/v5"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	apiHandlers := api.NewHandlers(s.manager, s.store, s.auth, s.log)

	// Health check
	s.router.Get("/health", s.handleHealth)

	// REST API
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/scan", apiHandlers.CreateScan)
		r.Get("/scan/{id}", apiHandlers.GetScan)
		r.Get("/scans", apiHandlers.ListScans)

		r.Post("/register", apiHandlers.Register)
		r.Post("/login", apiHandlers.Login)
		r.Post("/logout", apiHandlers.Logout)
		r.Get("/user", apiHandlers.CurrentUser)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

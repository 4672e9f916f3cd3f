package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Line endpoints
		r.Route("/lines", func(r chi.Router) {
			r.Get("/", s.handleListLines)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetLine)
				r.Get("/attrs/{attr}", s.handleGetAttr)
				r.Put("/attrs/{attr}", s.handleSetAttr)
			})
		})

		// System endpoints
		r.Route("/system", func(r chi.Router) {
			r.Get("/log-level", s.handleGetLogLevel)
			r.Put("/log-level", s.handleSetLogLevel)
		})

		// WebSocket state stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"lines":   s.registry.Count(),
	})
}

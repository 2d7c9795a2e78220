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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.availabilityMiddleware)

	// Monitoring (no auth required)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.pinAuthMiddleware)

		r.Post("/rpc", s.handleRPC)
		r.Get(s.wsPath(), s.handleWebSocket)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

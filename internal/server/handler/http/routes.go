// Package http provides HTTP routing and middleware configuration
// for the import service.
package http

import (
	"net/http"

	"github.com/atinyakov/keeperimport/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the import
// API.
//
// Routes:
//
//	GET  /api/health  → 200 ok (no certificate required)
//	POST /api/import  → importHandler.Import (text/csv body)
//	POST /api/breach  → breachHandler.Check (application/json body)
//	GET  /api/audit   → breachHandler.Audit
//
// Middleware chain (applied in order):
//  1. RequestID, Recoverer
//  2. WithRequestLogging(logger): logs incoming requests
//  3. CertAuth: enforces TLS client certificate auth
func NewRouter(
	importHandler *ImportHandler,
	breachHandler *BreachHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Enforce certificate-based authentication
	r.Use(middleware.CertAuth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})

		r.With(chiMiddleware.AllowContentType("text/csv", "text/plain", "application/octet-stream")).
			Post("/import", importHandler.Import)

		r.With(chiMiddleware.AllowContentType("application/json")).
			Post("/breach", breachHandler.Check)

		r.Get("/audit", breachHandler.Audit)
	})

	return r
}

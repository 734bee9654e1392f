// Package http provides HTTP routing and middleware configuration
// for the tour planner service.
package http

import (
	"net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/middleware"
	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the tour planner API. It applies JSON content-type enforcement
// and request logging, and mounts the user, plan, and override
// endpoints under /api.
//
// Routes:
//
//	GET  /api/health        → liveness probe
//	GET  /api/users         → usersHandler.List
//	POST /api/login         → usersHandler.Login
//	POST /api/users/add     → usersHandler.Add
//	POST /api/users/delete  → usersHandler.Delete
//	POST /api/users/decrypt → usersHandler.Decrypt (admin secret required)
//	POST /api/plans/get     → plansHandler.Get
//	POST /api/plans/set     → plansHandler.Set
//	POST /api/custom/add    → plansHandler.AddCustom
//	GET  /api/override      → overrideHandler.Get
//	POST /api/override      → overrideHandler.Apply
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") — rejects non-JSON request bodies
//  2. WithRequestLogging(logger)           — logs incoming requests
//
// The decrypt endpoint additionally sits behind AdminGate, which checks
// the X-Admin-Secret header; an empty adminSecret disables the endpoint.
func NewRouter(
	usersHandler *UsersHandler,
	plansHandler *PlansHandler,
	overrideHandler *OverrideHandler,
	adminSecret string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, models.Envelope{OK: true})
		})

		r.Get("/users", usersHandler.List)
		r.Post("/login", usersHandler.Login)
		r.Post("/users/add", usersHandler.Add)
		r.Post("/users/delete", usersHandler.Delete)

		r.Post("/plans/get", plansHandler.Get)
		r.Post("/plans/set", plansHandler.Set)
		r.Post("/custom/add", plansHandler.AddCustom)

		r.Get("/override", overrideHandler.Get)
		r.Post("/override", overrideHandler.Apply)

		// Protected group: requires the shared admin secret
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminGate(adminSecret))
			r.Post("/users/decrypt", usersHandler.Decrypt)
		})
	})

	return r
}

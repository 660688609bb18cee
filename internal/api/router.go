package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/ovagrab/internal/api/handler"
	mw "github.com/iconidentify/ovagrab/internal/api/middleware"
)

// Handlers groups the HTTP handlers served by the simulator.
type Handlers struct {
	Session   *handler.SessionHandler
	Inventory *handler.InventoryHandler
	Queue     *handler.QueueHandler
	Health    *handler.HealthHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, sessions mw.SessionValidator, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mw.CORS)

	// Health endpoints
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", h.Session.Connect)
		r.Post("/disconnect", h.Session.Disconnect)

		// Queue status and cancel stay open so a client can watch an
		// export it started before its session expired.
		r.Get("/status", h.Queue.Status)
		r.Post("/cancel", h.Queue.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession(sessions))

			r.Get("/vms", h.Inventory.List)
			r.Post("/export", h.Queue.Export)
			r.Post("/poweroff", h.Inventory.PowerOff)
		})
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. RateLimit:  Per-IP token bucket
  6. CacheGET:   Short-TTL read cache for browse endpoints

ROUTE GROUPS:
  /api/rotas/*        Rota lifecycle and shifts
  /api/shifts/*       Shift edits and assignments
  /api/assignments/*  Worker responses
  /api/leave/*        Leave request lifecycle
  /api/timeclock/*    Punches and corrections
  /api/compliance/*   Evaluation runs, violations, silencing

SECURITY NOTE:
  Actor identity comes from the X-Actor-ID header; authenticating it is
  the job of a gateway in front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - mw.go: Rate limiting and caching middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions are the knobs the config file feeds into the router.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	CacheTTL       time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rota routes. Reads sit behind the short-TTL cache.
		r.Route("/rotas", func(r chi.Router) {
			r.Post("/", h.CreateRota)
			r.With(CacheGET(opts.CacheTTL)).Get("/{id}", h.GetRota)
			r.Post("/{id}/transition", h.TransitionRota)
			r.With(CacheGET(opts.CacheTTL)).Get("/{id}/shifts", h.ListShifts)
			r.Post("/{id}/shifts", h.CreateShift)
		})

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Put("/{id}", h.UpdateShift)
			r.Post("/{id}/cancel", h.CancelShift)
			r.Delete("/{id}", h.DeleteShift)
			r.Post("/{id}/assignments", h.AssignShift)
			r.Get("/{id}/assignments", h.ListAssignments)
		})

		// Assignment responses
		r.Route("/assignments", func(r chi.Router) {
			r.Post("/{id}/respond", h.RespondAssignment)
		})

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/", h.CreateLeave)
			r.Get("/", h.ListLeave)
			r.Post("/{id}/decide", h.DecideLeave)
			r.Post("/{id}/cancel", h.CancelLeave)
		})

		// Timeclock routes
		r.Route("/timeclock", func(r chi.Router) {
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Get("/events", h.ListEvents)
			r.Route("/corrections", func(r chi.Router) {
				r.Post("/", h.CreateCorrection)
				r.Get("/pending", h.ListPendingCorrections)
				r.Post("/{id}/decide", h.DecideCorrection)
			})
		})

		// Compliance routes
		r.Route("/compliance", func(r chi.Router) {
			r.Post("/run", h.RunCompliance)
			r.Get("/violations", h.ListViolations)
			r.Post("/violations/{id}/silence", h.SilenceViolation)
		})
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:  X-Request-ID passthrough or new uuid
 2. RealIP:     Client address behind proxies
 3. Logger:     Structured request logging (logrus)
 4. Recoverer:  Panic recovery (500 instead of crash)
 5. CORS:       Cross-origin requests for the frontend
 6. Metrics:    Prometheus request counters (optional)
 7. RateLimit:  Process-wide token bucket on /api

ROUTE GROUPS:

	/healthz              Liveness (public)
	/metrics              Prometheus scrape (public)
	/api/leaves/*         Leave lifecycle (authenticated)
	/api/team/*           Manager and HR views
	/api/employees/*      Directory (HR)
	/api/scenarios/*      Demo scenarios (HR)
	/api/admin/*          Admin operations (HR)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate and RequireRole
  - cmd/server: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/leave-engine/generic"
)

// RouterConfig carries the settings the router needs from config.Config.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Metrics is optional; when set it instruments requests and serves
	// /metrics.
	Metrics interface {
		Middleware(http.Handler) http.Handler
		Handler() http.Handler
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Use(Authenticate(cfg.JWTSecret))

		// Leave routes
		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.ApplyLeave)
			r.Get("/mine", h.ListMyLeaves)
			r.Get("/{id}", h.GetLeave)
			r.Delete("/{id}", h.CancelLeave)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(generic.RoleManager, generic.RoleHR))
				r.Get("/{id}/history", h.GetLeaveHistory)
				r.Post("/{id}/decision", h.DecideLeave)
				r.Post("/bulk-decision", h.BulkDecide)
			})
		})

		// Team routes
		r.Route("/team", func(r chi.Router) {
			r.Use(RequireRole(generic.RoleManager, generic.RoleHR))
			r.Get("/pending", h.ListTeamPending)
			r.Get("/calendar", h.GetTeamCalendar)
			r.Get("/balances", h.GetTeamBalances)
		})

		// HR-only routes
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(generic.RoleHR))

			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.SaveEmployee)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/sweep", h.TriggerSweep)
				r.Get("/audit", h.GetAuditLog)
			})
		})
	})

	return r
}

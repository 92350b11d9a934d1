package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/flashnotes/flashnotes/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register             http.HandlerFunc
	Login                http.HandlerFunc
	LoginForm            http.HandlerFunc
	Refresh              http.HandlerFunc
	Logout               http.HandlerFunc
	PasswordResetRequest http.HandlerFunc
	PasswordResetConfirm http.HandlerFunc

	// User handlers
	GetMe    http.HandlerFunc
	UpdateMe http.HandlerFunc

	// AI usage quota
	GetAIQuota     http.HandlerFunc
	ConsumeAIUsage http.HandlerFunc
	AIQuotaGate    func(http.Handler) http.Handler

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// HealthCheck reports whether a dependency is usable. A nil check is
// reported as "not configured".
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
	HealthChecks       map[string]HealthCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for name, check := range cfg.HealthChecks {
			if check == nil {
				health[name] = "not configured"
				continue
			}
			if err := check(r.Context()); err != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// OAuth2 password flow (form encoded)
		r.Group(func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/tokens", h.LoginForm)
		})

		// Auth routes (public), optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/password-reset", h.PasswordResetRequest)
			r.Post("/password-reset/confirm", h.PasswordResetConfirm)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", h.GetMe)
				r.Patch("/", h.UpdateMe)
				r.Get("/ai-usage-quota", h.GetAIQuota)
			})

			// AI-consuming actions pass through the quota gate
			r.Route("/ai", func(r chi.Router) {
				r.Use(h.AIQuotaGate)
				r.Post("/usage", h.ConsumeAIUsage)
			})
		})
	})

	return r
}

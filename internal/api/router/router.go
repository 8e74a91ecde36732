package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/helioworks/support-ai-platform/internal/http/middleware"
	"github.com/helioworks/support-ai-platform/internal/session"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	SessionHandler *session.Handler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests/sec and burst per tenant. Zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Tenant-scoped session API
	if cfg.SessionHandler != nil {
		r.Route("/api/v1", func(api chi.Router) {
			api.Use(httpmiddleware.RequireCompany)
			if cfg.RateLimitPerSecond > 0 {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
			}
			api.Group(cfg.SessionHandler.Routes)
		})

		// Analytics reports stay behind admin auth.
		r.Route("/admin/api/v1", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(httpmiddleware.RequireCompany)
			admin.Group(cfg.SessionHandler.AnalyticsRoutes)
		})
	}

	return r
}

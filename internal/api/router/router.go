package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/realty-ai-platform/internal/actions"
	httpmiddleware "github.com/wolfman30/realty-ai-platform/internal/http/middleware"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *actions.Handler
	AgentJWTSecret     string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	HealthChecks       map[string]HealthCheck
}

// New creates a new chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(httpmiddleware.ChatCORSPolicy(cfg.CORSAllowedOrigins)))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks, cfg.Logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Agent-authenticated chat API
	if cfg.ChatHandler != nil {
		r.Route("/v1/chat", func(chat chi.Router) {
			chat.Use(httpmiddleware.AgentJWT(cfg.AgentJWTSecret))
			if cfg.RateLimiter != nil {
				chat.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			chat.Use(middleware.Compress(5))
			cfg.ChatHandler.Routes(chat)
		})
	}

	return r
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vibeproxy/vibeproxy-go/internal/http/handlers"
	httpmiddleware "github.com/vibeproxy/vibeproxy-go/internal/http/middleware"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Gateway            *handlers.GatewayHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimiter, when set, guards the routes that reach VibeProxy.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	gw := cfg.Gateway
	gw.AllowOrigins(cfg.CORSAllowedOrigins)

	// Introspection and control, never rate limited.
	r.Group(func(public chi.Router) {
		public.Get("/health", gw.Health)
		public.Get("/models", gw.Models)
		public.Get("/sessions/{sessionID}/messages", gw.History)
		public.Delete("/sessions/{sessionID}", gw.ClearSession)
		public.Post("/requests/{requestID}/cancel", gw.CancelRequest)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Completion routes.
	r.Group(func(completions chi.Router) {
		if cfg.RateLimiter != nil {
			completions.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		completions.Post("/chat", gw.Chat)
		completions.Post("/sessions/{sessionID}/messages", gw.SendMessage)
		completions.Get("/sessions/{sessionID}/stream", gw.Stream)
	})

	return r
}

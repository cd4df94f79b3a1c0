package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// EventRouter turns a parsed webhook payload into queued runs.
type EventRouter interface {
	ProcessEvent(ctx context.Context, eventType string, payload any) ([]*model.Run, error)
}

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret types.Secret
	apiToken      types.Secret
	store         interfaces.RunStore
	metrics       http.Handler
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the GitHub webhook HMAC secret
func WithWebhookSecret(secret types.Secret) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithAPIToken protects the runs API with bearer token auth
func WithAPIToken(token types.Secret) Option {
	return func(c *config) {
		c.apiToken = token
	}
}

// WithRunStore exposes the runs API backed by the given store
func WithRunStore(store interfaces.RunStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithMetricsHandler mounts a Prometheus handler at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(c *config) {
		c.metrics = h
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	router EventRouter,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(ctx))
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", handleHealth)

	// Webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, router)
	r.Post("/hooks/github/app", webhookHandler.Handle)

	// Runs API
	if cfg.store != nil {
		runsHandler := NewRunsHandler(cfg.store)
		r.Route("/api/v1/runs", func(r chi.Router) {
			if !cfg.apiToken.IsEmpty() {
				r.Use(AuthMiddleware(cfg.apiToken))
			}
			r.Get("/", runsHandler.List)
			r.Get("/{runID}", runsHandler.Get)
		})
	}

	if cfg.metrics != nil {
		r.Get("/metrics", cfg.metrics.ServeHTTP)
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           r,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}

// Package adminapi exposes the email-health HTTP API: per-provider breaker
// and quota state, outbox queue stats, send history, message intake, and
// Prometheus metrics.
package adminapi

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/outbox"
	"github.com/lattiq/courier/internal/ratelimit"
	"github.com/lattiq/courier/internal/store"
)

// Courier is the subset of the delivery client the API needs.
type Courier interface {
	Health(ctx context.Context) ([]core.ProviderHealth, error)
	ResetProvider(name string) bool
}

// Server holds the handler dependencies.
type Server struct {
	courier       Courier
	queue         *outbox.Queue
	outboxStore   store.OutboxStore
	sendLog       store.SendLogStore
	breakerEvents store.BreakerEventStore
	limiter       ratelimit.Limiter
	logger        *slog.Logger
	version       string
}

// Option configures the Server.
type Option func(*Server)

// WithLimiter sets the rate limiter applied to mutating routes.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithVersion sets the version string reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new admin API server.
func NewServer(
	courier Courier,
	queue *outbox.Queue,
	outboxStore store.OutboxStore,
	sendLog store.SendLogStore,
	breakerEvents store.BreakerEventStore,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		courier:       courier,
		queue:         queue,
		outboxStore:   outboxStore,
		sendLog:       sendLog,
		breakerEvents: breakerEvents,
		limiter:       ratelimit.NoopLimiter{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router with all middleware attached.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", s.handleListProviders)
		r.Get("/outbox/stats", s.handleOutboxStats)
		r.Get("/sends", s.handleListSends)
		r.Get("/breaker-events", s.handleBreakerEvents)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.limiter))
			r.Post("/providers/{name}/reset", s.handleResetProvider)
			r.Post("/messages", s.handleCreateMessage)
		})
	})

	return r
}

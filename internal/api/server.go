// Package api exposes the gateway's HTTP surface: routing, middleware, and
// the transport mapping of the error taxonomy.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/auth"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/ratelimit"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimitRequests and RateLimitWindow echo the limiter's construction
	// so rejections can state the limit.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Server is the gateway HTTP server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  ServerConfig
}

// NewServer wires the router: health and metrics are open, the insight
// endpoints sit behind the auth gate and the per-identity rate limiter.
func NewServer(cfg ServerConfig, handler *Handler, gate *auth.Gate, limiter *ratelimit.Limiter, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(RecoverMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(middleware.RealIP)

	router.Get("/v1/health", handler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1/insights", func(r chi.Router) {
		r.Use(AuthMiddleware(gate))
		r.Use(RateLimitMiddleware(limiter, cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/", handler.CreateInsight)
		r.Get("/{requestID}", handler.GetInsight)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Package server exposes the read-only HTTP status API and the Prometheus
// metrics endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/updownlabs/pairbot/internal/server/handler"
	"github.com/updownlabs/pairbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Handlers aggregates the HTTP handlers the server registers. Resolve is
// optional; it is only wired when the mode owns a live market manager.
type Handlers struct {
	Health  *handler.HealthHandler
	State   *handler.StateHandler
	Resolve *handler.ResolveHandler
}

// Server is the status API for the engine. Apart from operator-triggered
// resolution, all routes are read-only; trading decisions stay inside the
// tick pipeline.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/markets", handlers.State.ListMarkets)
	mux.HandleFunc("GET /api/state/{market}", handlers.State.GetState)
	mux.HandleFunc("GET /api/trades/{market}", handlers.State.GetTrades)
	if handlers.Resolve != nil {
		mux.HandleFunc("POST /api/resolve/{market}", handlers.Resolve.Resolve)
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
	}
}

// Start begins listening for HTTP requests and blocks until the server
// errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/greenlight/pkg/config"
	"mercator-hq/greenlight/pkg/engine"
	"mercator-hq/greenlight/pkg/history"
)

// Server is the HTTP API server for gating decisions.
type Server struct {
	cfg         config.ServerConfig
	engine      *engine.Engine
	history     *history.Store // nil when history is disabled
	metrics     http.Handler   // nil when metrics are disabled
	metricsPath string
	logger      *slog.Logger
	version     string

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	isRunning    bool
}

// Options carries the optional collaborators of the server.
type Options struct {
	// History records evaluated decisions when set.
	History *history.Store

	// Metrics is the Prometheus exposition handler, served on MetricsPath
	// when set.
	Metrics     http.Handler
	MetricsPath string

	// Version is reported by the about endpoint.
	Version string
}

// New creates an API server around the decision engine.
func New(cfg config.ServerConfig, eng *engine.Engine, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		cfg:         cfg,
		engine:      eng,
		history:     opts.History,
		metrics:     opts.Metrics,
		metricsPath: metricsPath,
		logger:      logger.With("component", "server"),
		version:     opts.Version,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled, a
// termination signal arrives or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.isRunning = false
		s.mu.Unlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.logger.Info("API server stopped")
	})
	return shutdownErr
}

// routes configures the HTTP routes and middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1.0/decision", s.handleDecision)
	mux.HandleFunc("/api/v1.0/decisions", s.handleDecisionHistory)
	mux.HandleFunc("/api/v1.0/about", s.handleAbout)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

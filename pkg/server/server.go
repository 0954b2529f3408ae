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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helpdesk-hq/beacon/pkg/audit"
	"helpdesk-hq/beacon/pkg/config"
	"helpdesk-hq/beacon/pkg/engine"
	"helpdesk-hq/beacon/pkg/telemetry/health"
	"helpdesk-hq/beacon/pkg/telemetry/metrics"
)

// Server is the HTTP server for the escalation decision service.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	engine       *engine.Engine
	recorder     *audit.Recorder
	auditStore   *audit.Store
	health       *health.Checker
	metrics      *metrics.Collector
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options bundles the dependencies a Server needs. Recorder and AuditStore
// may be nil when audit is disabled; Metrics may be nil when disabled.
type Options struct {
	Config     *config.ServerConfig
	MetricsCfg *config.MetricsConfig
	Engine     *engine.Engine
	Recorder   *audit.Recorder
	AuditStore *audit.Store
	Health     *health.Checker
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// NewServer creates a new decision server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       opts.Config,
		metricsCfg:   opts.MetricsCfg,
		engine:       opts.Engine,
		recorder:     opts.Recorder,
		auditStore:   opts.AuditStore,
		health:       opts.Health,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting decision server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown",
			"timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("decision server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/score", NewScoreHandler(s.engine, s.recorder, s.logger))

	if s.auditStore != nil {
		mux.Handle("/v1/decisions", NewDecisionsHandler(s.auditStore, s.logger))
	}

	if s.health != nil {
		mux.HandleFunc("/health", s.health.LivenessHandler())
		mux.HandleFunc("/ready", s.health.ReadinessHandler())
	}

	if s.metrics != nil && s.metricsCfg != nil && s.metricsCfg.Enabled {
		mux.Handle(s.metricsCfg.Path, promhttp.HandlerFor(
			s.metrics.Registry(),
			promhttp.HandlerOpts{},
		))
	}

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

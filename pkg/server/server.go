// Package server provides the admin HTTP API of the mailsweep daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
	"mercator-hq/mailsweep/pkg/telemetry/health"
	"mercator-hq/mailsweep/pkg/telemetry/tracing"
)

// API is the set of operator operations exposed over HTTP. It is
// implemented by *lifecycle.Service.
type API interface {
	Stats(ctx context.Context) (mailbox.StorageStats, mailbox.Mode, error)
	Cleanup(ctx context.Context, req lifecycle.CleanupRequest) (mailbox.CleanupResult, error)
	History(ctx context.Context, since time.Duration) ([]mailbox.CleanupResult, error)
	Report(ctx context.Context) (lifecycle.Report, error)
	Policies() []mailbox.RetentionPolicy
	UpsertPolicy(p mailbox.RetentionPolicy) error
}

// Deps are the components served by the admin server. Health, Metrics and
// Tracer are optional.
type Deps struct {
	API     API
	Health  *health.Checker
	Metrics http.Handler
	Tracer  trace.Tracer

	// MetricsPath is where Metrics is mounted. Default: "/metrics"
	MetricsPath string
}

// Server is the admin HTTP server.
type Server struct {
	config     *config.AdminConfig
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server

	mu        sync.RWMutex
	isRunning bool
	addr      net.Addr
	stopOnce  sync.Once
}

// New creates an admin server.
func New(cfg *config.AdminConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("admin config is nil")
	}
	if deps.API == nil {
		return nil, errors.New("admin server requires an API")
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if ok {
			s.setStopped()
			return err
		}
		return nil
	}
}

// Shutdown stops accepting requests and waits for in-flight requests up to
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.stopOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}

		s.logger.Info("shutting down admin server", "timeout", s.config.ShutdownTimeout.String())
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.setStopped()
		s.logger.Info("admin server stopped")
	})
	return shutdownErr
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address while the server runs.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the admin routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	h := &handlers{api: s.deps.API, logger: s.logger}

	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("POST /v1/cleanup", h.cleanup)
	mux.HandleFunc("GET /v1/audit", h.audit)
	mux.HandleFunc("GET /v1/report", h.report)
	mux.HandleFunc("GET /v1/policies", h.listPolicies)
	mux.HandleFunc("PUT /v1/policies/{category}", h.putPolicy)

	if s.deps.Health != nil {
		s.deps.Health.Mount(mux)
	}
	if s.deps.Metrics != nil {
		mux.Handle(s.deps.MetricsPath, s.deps.Metrics)
	}

	var handler http.Handler = mux
	if s.deps.Tracer != nil {
		handler = tracing.HTTPMiddleware(s.deps.Tracer, handler)
	}
	handler = loggingMiddleware(s.logger, handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger, handler)
	return handler
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/novagate/internal/shell/api"
	"github.com/artpar/novagate/internal/shell/compute"
	"github.com/artpar/novagate/internal/shell/metrics"
	"github.com/artpar/novagate/internal/shell/provider"
	"github.com/artpar/novagate/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitProviderError   = 2
	ExitMetricsError    = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the gateway process.
type Server struct {
	config     *Config
	httpServer *http.Server
	probe      *workers.ProviderProbe
	logger     *slog.Logger
}

// NewServer wires the provider facade, the compute service and the HTTP API.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if cfg.Metrics.Enabled {
		if err := metrics.RegisterMetrics(); err != nil {
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitMetricsError}
		}
	}

	client, err := provider.NewClient(provider.Config{
		Type:            cfg.Provider.Type,
		APIToken:        cfg.Provider.APIToken,
		AccessKeyID:     cfg.Provider.AccessKeyID,
		SecretAccessKey: cfg.Provider.SecretAccessKey,
		Region:          cfg.Provider.Region,
		NetworkLabel:    cfg.Provider.NetworkLabel,
		RetryAttempts:   cfg.Provider.RetryAttempts,
		RetryDelay:      cfg.Provider.RetryDelay,
	}, logger)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitProviderError}
	}

	svc := compute.NewService(client, compute.Config{
		BaseURL:                 cfg.Compute.BaseURL,
		DefaultAvailabilityZone: cfg.Compute.DefaultAvailabilityZone,
		DefaultDomain:           cfg.Compute.DefaultDomain,
	}, logger)

	var probe *workers.ProviderProbe
	var readiness api.ReadinessChecker
	if cfg.Provider.ProbeInterval > 0 {
		probe = workers.NewProviderProbe(svc, cfg.Provider.Type, workers.ProbeConfig{
			Interval: cfg.Provider.ProbeInterval,
			Timeout:  cfg.Provider.ProbeTimeout,
		}, logger)
		readiness = probe
	}

	handler := api.SetupAPI(api.APIConfig{
		Service:         svc,
		Logger:          logger,
		RequireIdentity: cfg.Auth.RequireIdentity,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
		Version:         Version,
		Readiness:       readiness,
	})

	if cfg.Compute.DefaultAvailabilityZone == "" {
		logger.Warn("no default availability zone; create requests must name one")
	}

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		probe:  probe,
		logger: logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.probe != nil {
		s.probe.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server. Requests already handed to the
// provider finish; the provider keeps whatever it accepted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if s.probe != nil {
		s.probe.Stop()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return &ServerError{Op: "Shutdown", Err: err, ExitCode: ExitHTTPServerError}
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

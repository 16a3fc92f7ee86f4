// Package cli provides the initialization shared by cmd/compras,
// cmd/compras-worker and cmd/comprasctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"compras/internal/backend"
	"compras/internal/catalog"
	"compras/internal/config"
	"compras/internal/core"
	"compras/internal/docsync"
	"compras/internal/log"
	"compras/internal/metrics"
	"compras/internal/partition"
)

// SetupLogger initializes structured logging at the configured level and
// sets it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}

// Stack is the document pipeline of one process: store, sync adapter and
// partition manager.
type Stack struct {
	Backend *backend.BackendResult
	Sync    *docsync.Adapter
	Manager *partition.Manager
	Catalog *catalog.Catalog
}

// NewStack opens the configured backend and builds the manager on top of it.
func NewStack(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Collector) (*Stack, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Default()
	if err != nil {
		res.Cleanup()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	adapter := docsync.New(res.Store, docsync.Options{Logger: logger, Metrics: m})
	manager := partition.New(adapter, cat, core.NewClockIDs(nil), logger, m)
	return &Stack{Backend: res, Sync: adapter, Manager: manager, Catalog: cat}, nil
}

// Close flushes pending writes and releases the backend.
func (s *Stack) Close(ctx context.Context) error {
	err := s.Manager.Close(ctx)
	if cerr := s.Backend.Cleanup(); err == nil {
		err = cerr
	}
	return err
}

// Package cli provides common CLI initialization utilities.
// This package consolidates the startup steps shared by cmd/budgetwatch and
// cmd/alert-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetwatch/internal/config"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

// ShutdownTimeout bounds graceful shutdown of servers and workers.
const ShutdownTimeout = 30 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	lc.Component = component
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// InitSQLite opens the SQLite repository at dbPath, applying migrations.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", dbPath, err)
	}
	logger.Info("SQLite repository ready", "path", dbPath, "schema_version", repo.SchemaVersion())
	return repo, nil
}

// WithShutdownSignals returns a context cancelled on SIGINT or SIGTERM.
// The returned cancel releases the signal handler.
func WithShutdownSignals(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// Fatal logs err and exits the process.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

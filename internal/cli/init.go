// Package cli holds the start-up steps shared by cmd/finanzen and
// cmd/finanzen-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzen/internal/config"
	"finanzen/internal/localstore"
	applog "finanzen/internal/log"
	"finanzen/internal/storage"
)

// SetupLogger builds the process logger for component and installs it as
// the slog default. Unknown levels fall back to info.
func SetupLogger(level, component string, out io.Writer) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	cfg := applog.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = component
	if out != nil {
		cfg.Output = out
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Stores bundles the persistence the engine runs on. Remote is nil when no
// remote database is configured.
type Stores struct {
	Remote    *storage.SQLiteRepository
	Local     *localstore.SQLiteKV
	Snapshots *localstore.SnapshotStore
}

// OpenStores opens the local snapshot file and, when enabled, the remote
// database with its migrations applied.
func OpenStores(cfg *config.Config) (*Stores, error) {
	kv, err := localstore.OpenSQLiteKV(cfg.LocalDBPath, cfg.LocalScope)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	s := &Stores{Local: kv, Snapshots: localstore.NewSnapshotStore(kv)}
	if !cfg.RemoteEnabled() {
		return s, nil
	}
	repo, err := storage.NewSQLiteRepository(cfg.RemoteDBPath)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}
	s.Remote = repo
	return s, nil
}

func (s *Stores) Close() error {
	var errs []error
	if s.Remote != nil {
		errs = append(errs, s.Remote.Close())
	}
	if s.Local != nil {
		errs = append(errs, s.Local.Close())
	}
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once before cancellation and is bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
		logger.Info("Shutdown complete")
		close(done)
	}()

	return ctx, done
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/autonomy-edge/compilerd/internal/config"
	"github.com/autonomy-edge/compilerd/internal/janitor"
	"github.com/autonomy-edge/compilerd/internal/server/httpserver"
)

// runServe starts the HTTP server together with its supporting loops
// (workspace janitor, config watcher) and blocks until a termination
// signal arrives.
func runServe(cfg *config.Config, configPath string, watch bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httpserver.New(cfg, version)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	slog.Info("Server started", "addr", server.Addr(), "version", version)

	var sweeper *janitor.Janitor
	if cfg.Janitor.Enabled {
		j, err := janitor.New(server.Workspaces(), cfg.Janitor.Interval.Std(), cfg.Janitor.MaxAge.Std())
		if err != nil {
			return fmt.Errorf("starting janitor: %w", err)
		}
		j.Start(ctx)
		sweeper = j
	}

	var watcher *config.Watcher
	if watch {
		if _, err := os.Stat(configPath); err == nil {
			w, err := config.NewWatcher(configPath, server.ApplyConfig)
			if err != nil {
				slog.Warn("Config watcher unavailable", "error", err)
			} else if err := w.Start(ctx); err != nil {
				slog.Warn("Config watcher failed to start", "error", err)
			} else {
				watcher = w
			}
		}
	}

	sig := waitForSignal()
	slog.Info("Shutting down", "signal", sig.String())

	if watcher != nil {
		watcher.Stop()
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			slog.Warn("Janitor shutdown failed", "error", err)
		}
	}

	if err := server.Stop(context.Background()); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}

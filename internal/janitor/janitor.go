// Package janitor periodically removes workspace directories leaked by
// crashes or operator-killed tool invocations. Normal requests release their
// workspace on every exit path, so the sweep is crash recovery, not routine
// cleanup.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/autonomy-edge/compilerd/internal/logfields"
	"github.com/autonomy-edge/compilerd/internal/workspace"
)

// Janitor wraps a gocron scheduler driving the stale-workspace sweep.
type Janitor struct {
	scheduler  gocron.Scheduler
	workspaces *workspace.Manager
	maxAge     time.Duration
}

// New creates a janitor sweeping manager's base directory.
func New(manager *workspace.Manager, interval, maxAge time.Duration) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Janitor{
		scheduler:  s,
		workspaces: manager,
		maxAge:     maxAge,
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("workspace-sweep"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sweep job: %w", err)
	}

	return j, nil
}

// Start begins the periodic sweep.
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("Starting workspace janitor",
		logfields.Path(j.workspaces.BaseDir()),
		slog.Duration("max_age", j.maxAge))
	j.scheduler.Start()
}

// Stop shuts the scheduler down.
func (j *Janitor) Stop() error {
	slog.Info("Stopping workspace janitor")
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	removed, err := j.workspaces.Sweep(j.maxAge)
	if err != nil {
		slog.Warn("Workspace sweep failed", logfields.Error(err))
		return
	}
	if removed > 0 {
		slog.Info("Workspace sweep completed", slog.Int("removed", removed))
	}
}

package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/enach-client/internal/state"
	"github.com/cuongbtq/enach-client/internal/worker"
)

// WatchLister exposes the scheduler's view of watched jobs
type WatchLister interface {
	Snapshot() []worker.Info
	Lookup(key string) (worker.Info, bool)
}

// JobWatcher starts and stops job watches
type JobWatcher interface {
	Watch(ctx context.Context, jobID string) error
	Unwatch(ctx context.Context, jobID string) error
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Service  string
	Watches  WatchLister
	Watcher  JobWatcher
	Jobs     *state.JobState
	Database HealthChecker
}

// WatchHandler handles watch and job HTTP requests
type WatchHandler struct {
	logger  *slog.Logger
	watches WatchLister
	watcher JobWatcher
	jobs    *state.JobState
}

// NewWatchHandler creates a new WatchHandler instance
func NewWatchHandler(deps *Dependencies) *WatchHandler {
	return &WatchHandler{
		logger:  deps.Logger,
		watches: deps.Watches,
		watcher: deps.Watcher,
		jobs:    deps.Jobs,
	}
}

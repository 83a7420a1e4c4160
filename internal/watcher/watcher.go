// Package watcher polls the status of created jobs in the background and
// notifies the user once when a job reaches a state that needs attention.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/notify"
	workerdomain "github.com/cuongbtq/enach-client/internal/worker/domain"
)

const (
	// KeyPrefix prefixes the scheduler key of every watched job
	KeyPrefix = "job_status_"
	// PayloadJobID is the payload entry holding the job id
	PayloadJobID = "job_id"

	// DefaultInterval is used when Config.Interval is not set
	DefaultInterval = 15 * time.Minute
)

// Notification titles
const (
	TitleCompleted          = "Job Completed"
	TitleValidationRequired = "Validation Required"
	TitleFailed             = "Job Failed"
	TitleValidated          = "Job Validated"
)

// Scheduler is the part of the worker scheduler the watcher uses
type Scheduler interface {
	Register(prefix string, h workerdomain.Handler)
	ScheduleRecurring(ctx context.Context, key string, interval time.Duration, constraints workerdomain.Constraints, payload map[string]string) error
	Cancel(ctx context.Context, key string) error
}

// StatusFetcher fetches the current job record
type StatusFetcher interface {
	FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error)
}

// Config holds watcher configuration
type Config struct {
	Scheduler Scheduler
	Fetcher   StatusFetcher
	Notifier  notify.Notifier
	Interval  time.Duration
	// RequiresNetwork holds ticks back while the backend is unreachable
	RequiresNetwork bool
	Logger          *slog.Logger
}

// Watcher schedules and runs job status checks
type Watcher struct {
	scheduler       Scheduler
	fetcher         StatusFetcher
	notifier        notify.Notifier
	interval        time.Duration
	requiresNetwork bool
	logger          *slog.Logger

	mu       sync.Mutex
	notified map[notification]struct{}
}

// notification identifies one terminal transition of a job
type notification struct {
	jobID  string
	status domain.JobStatus
}

// New creates a watcher and registers it with the scheduler for KeyPrefix
func New(cfg *Config) (*Watcher, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("status fetcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	w := &Watcher{
		scheduler:       cfg.Scheduler,
		fetcher:         cfg.Fetcher,
		notifier:        notifier,
		interval:        interval,
		requiresNetwork: cfg.RequiresNetwork,
		logger:          logger,
		notified:        make(map[notification]struct{}),
	}
	cfg.Scheduler.Register(KeyPrefix, w)
	return w, nil
}

// Key returns the scheduler key for jobID
func Key(jobID string) string {
	return KeyPrefix + strings.TrimSpace(jobID)
}

// JobID extracts the job id from a scheduler key
func JobID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, KeyPrefix)
	return id, ok && id != ""
}

// Watch schedules periodic status checks for jobID, replacing any existing
// watch for the same job
func (w *Watcher) Watch(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("%w: job id is required", workerdomain.ErrInvalidPayload)
	}

	err := w.scheduler.ScheduleRecurring(ctx, Key(jobID), w.interval,
		workerdomain.Constraints{RequiresNetwork: w.requiresNetwork},
		map[string]string{PayloadJobID: jobID},
	)
	if err != nil {
		return fmt.Errorf("failed to watch job %s: %w", jobID, err)
	}
	return nil
}

// Unwatch stops checking jobID and forgets which of its transitions were
// notified
func (w *Watcher) Unwatch(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if err := w.scheduler.Cancel(ctx, Key(jobID)); err != nil {
		return fmt.Errorf("failed to unwatch job %s: %w", jobID, err)
	}

	w.mu.Lock()
	for n := range w.notified {
		if n.jobID == jobID {
			delete(w.notified, n)
		}
	}
	w.mu.Unlock()
	return nil
}

// Handle runs one status check
func (w *Watcher) Handle(ctx context.Context, key string, payload map[string]string) (workerdomain.Outcome, error) {
	jobID := strings.TrimSpace(payload[PayloadJobID])
	if jobID == "" {
		w.logger.Error("Status check without job id",
			slog.String("key", key),
		)
		return workerdomain.Failure, workerdomain.ErrInvalidPayload
	}

	job, err := w.fetcher.FetchJobStatus(ctx, jobID)
	if err != nil {
		w.logger.Warn("Failed to fetch job status",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return workerdomain.Retry, err
	}

	status := job.Status.Normalized()
	w.logger.Debug("Job status checked",
		slog.String("job_id", jobID),
		slog.String("status", status.String()),
		slog.Int("progress", job.ProgressPercentage),
	)

	switch status {
	case domain.StatusCompleted:
		w.notify(ctx, jobID, status, TitleCompleted, "Your e-NACH processing job has been completed successfully.")
		return workerdomain.Success, nil

	case domain.StatusValidated:
		w.notify(ctx, jobID, status, TitleValidated, "Job has been validated successfully.")
		return workerdomain.Success, nil

	case domain.StatusValidationRequired:
		w.notify(ctx, jobID, status, TitleValidationRequired, "Job requires manual validation. Please review and confirm.")
		return workerdomain.Success, nil

	case domain.StatusFailed:
		reason := job.ErrorMessage
		if strings.TrimSpace(reason) == "" {
			reason = "Unknown error"
		}
		w.notify(ctx, jobID, status, TitleFailed, "Job has failed. "+reason)
		return workerdomain.Failure, fmt.Errorf("job %s failed: %s", jobID, reason)

	default:
		return workerdomain.Continue, nil
	}
}

// notify delivers at most one notification per job and terminal status.
// jobID is the watched id; the server's record may omit it.
func (w *Watcher) notify(ctx context.Context, jobID string, status domain.JobStatus, title, message string) {
	id := notification{jobID: jobID, status: status}

	w.mu.Lock()
	if _, done := w.notified[id]; done {
		w.mu.Unlock()
		w.logger.Debug("Job already notified",
			slog.String("job_id", jobID),
			slog.String("status", status.String()),
		)
		return
	}
	w.notified[id] = struct{}{}
	w.mu.Unlock()

	n := notify.Notification{
		JobID:     jobID,
		Status:    status.String(),
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		w.logger.Error("Failed to deliver notification",
			slog.String("job_id", jobID),
			slog.String("title", title),
			slog.Any("error", err),
		)
	}
}

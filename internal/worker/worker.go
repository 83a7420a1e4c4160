// Package worker runs recurring, keyed background work on a bounded pool of
// goroutines. Scheduling a key again replaces the previous schedule, ticks of
// one key never overlap, and work that requires the network is held back
// while the backend is unreachable.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/cuongbtq/enach-client/internal/worker/domain"
)

// Store persists work records. The scheduler works without one.
type Store interface {
	Upsert(ctx context.Context, rec domain.WorkRecord) error
	UpdateState(ctx context.Context, key string, state domain.State, attempts int, lastError string) error
	Delete(ctx context.Context, key string) error
	ListActive(ctx context.Context) ([]domain.WorkRecord, error)
}

// Config holds scheduler configuration
type Config struct {
	Logger       *slog.Logger
	Store        Store
	Connectivity Connectivity
	Concurrency  int
	// MaxRetries is the number of consecutive Retry outcomes tolerated
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ConstraintRecheck time.Duration
	TickTimeout       time.Duration
}

// Info is a point-in-time view of one key
type Info struct {
	Key             string
	State           domain.State
	Interval        time.Duration
	RequiresNetwork bool
	Payload         map[string]string
	Attempts        int
	LastError       string
	NextRun         time.Time
	CreatedAt       time.Time
}

type registration struct {
	prefix  string
	handler domain.Handler
}

type entry struct {
	key         string
	gen         uint64
	interval    time.Duration
	constraints domain.Constraints
	payload     map[string]string
	handler     domain.Handler
	state       domain.State
	attempts    int
	lastErr     string
	nextRun     time.Time
	createdAt   time.Time
	backoff     *backoff.ExponentialBackOff
	timer       *time.Timer
}

type tick struct {
	key string
	gen uint64
}

// Scheduler owns every scheduled key and the pool that runs their ticks
type Scheduler struct {
	logger            *slog.Logger
	store             Store
	connectivity      Connectivity
	concurrency       int
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	constraintRecheck time.Duration
	tickTimeout       time.Duration

	// syncMu serializes ScheduleRecurring, Cancel, Restore and tick results
	// so the store and the in-memory entries agree
	syncMu sync.Mutex

	mu       sync.Mutex
	handlers []registration
	entries  map[string]*entry
	finished map[string]Info
	gen      uint64
	started  bool
	stopped  bool

	ticks     chan tick
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler. Work can be scheduled, cancelled and
// restored before Start, but nothing runs until then.
func NewScheduler(cfg *Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:            logger,
		store:             cfg.Store,
		connectivity:      cfg.Connectivity,
		concurrency:       positive(cfg.Concurrency, 2),
		maxRetries:        positive(cfg.MaxRetries, 5),
		initialBackoff:    positive(cfg.InitialBackoff, 30*time.Second),
		maxBackoff:        positive(cfg.MaxBackoff, 5*time.Hour),
		constraintRecheck: positive(cfg.ConstraintRecheck, time.Minute),
		tickTimeout:       positive(cfg.TickTimeout, 2*time.Minute),
		entries:           make(map[string]*entry),
		finished:          make(map[string]Info),
		ticks:             make(chan tick),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Register routes every key starting with prefix to h. The longest matching
// prefix wins.
func (s *Scheduler) Register(prefix string, h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, registration{prefix: prefix, handler: h})
}

func (s *Scheduler) handlerFor(key string) domain.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlerForLocked(key)
}

// ScheduleRecurring runs the handler registered for key right away and then
// every interval. An existing schedule for key is replaced, never duplicated.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, key string, interval time.Duration, constraints domain.Constraints, payload map[string]string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("work key is required")
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}

	h := s.handlerFor(key)
	if h == nil {
		return fmt.Errorf("%w: %s", domain.ErrNoHandler, key)
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return domain.ErrSchedulerStopped
	}
	createdAt := time.Now()
	if old, ok := s.entries[key]; ok {
		createdAt = old.createdAt
	}
	s.mu.Unlock()

	rec := domain.WorkRecord{
		Key:         key,
		Interval:    interval,
		Constraints: constraints,
		Payload:     maps.Clone(payload),
		State:       domain.StateScheduled,
		CreatedAt:   createdAt,
	}
	if s.store != nil {
		if err := s.store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist work record: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrSchedulerStopped
	}

	if old, ok := s.entries[key]; ok {
		old.stopTimer()
		s.logger.Info("Replacing scheduled work",
			slog.String("key", key),
			slog.Uint64("previous_generation", old.gen),
		)
	}
	delete(s.finished, key)

	e := s.newEntryLocked(rec, h)
	s.entries[key] = e
	s.armLocked(e, 0)

	s.logger.Info("Work scheduled",
		slog.String("key", key),
		slog.Duration("interval", interval),
		slog.Bool("requires_network", constraints.RequiresNetwork),
	)
	return nil
}

// Cancel stops and forgets key and deletes its record. Cancelling an unknown
// key only deletes the record.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.stopTimer()
		e.state = domain.StateCancelled
		delete(s.entries, key)
		s.finished[key] = e.info()
		s.logger.Info("Work cancelled", slog.String("key", key))
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete work record: %w", err)
		}
	}
	return nil
}

// Restore schedules every persisted non-terminal record that is not already
// running, keeping its attempt count. Running keys whose record has
// disappeared, e.g. cancelled by another process, are dropped. It returns the
// number of keys added.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	records, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore work: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, domain.ErrSchedulerStopped
	}

	active := make(map[string]struct{}, len(records))
	added := 0
	for _, rec := range records {
		active[rec.Key] = struct{}{}
		if _, ok := s.entries[rec.Key]; ok {
			continue
		}

		h := s.handlerForLocked(rec.Key)
		if h == nil {
			s.logger.Warn("Skipping persisted work without handler",
				slog.String("key", rec.Key),
			)
			continue
		}

		e := s.newEntryLocked(rec, h)
		e.attempts = rec.Attempts
		e.lastErr = rec.LastError
		s.entries[rec.Key] = e
		s.armLocked(e, 0)
		added++
	}

	for key, e := range s.entries {
		if _, ok := active[key]; ok {
			continue
		}
		e.stopTimer()
		e.state = domain.StateCancelled
		delete(s.entries, key)
		s.finished[key] = e.info()
		s.logger.Info("Dropping work whose record was removed", slog.String("key", key))
	}

	if added > 0 {
		s.logger.Info("Work restored", slog.Int("count", added))
	}
	return added, nil
}

func (s *Scheduler) handlerForLocked(key string) domain.Handler {
	var (
		best    domain.Handler
		bestLen = -1
	)
	for _, r := range s.handlers {
		if strings.HasPrefix(key, r.prefix) && len(r.prefix) > bestLen {
			best, bestLen = r.handler, len(r.prefix)
		}
	}
	return best
}

// Snapshot lists every scheduled key, sorted by key
func (s *Scheduler) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info())
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Lookup returns the current view of key, including keys that finished or
// were cancelled during this process's lifetime
func (s *Scheduler) Lookup(key string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.info(), true
	}
	info, ok := s.finished[key]
	return info, ok
}

// Start spawns the worker pool. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.logger.Info("Starting scheduler",
			slog.Int("concurrency", s.concurrency),
			slog.Int("max_retries", s.maxRetries),
		)

		s.spawnWorkerPool()

		s.mu.Lock()
		s.started = true
		for _, e := range s.entries {
			if !s.stopped {
				s.armLocked(e, max(time.Until(e.nextRun), 0))
			}
		}
		s.mu.Unlock()

		go func() {
			select {
			case <-ctx.Done():
				s.Stop()
			case <-s.ctx.Done():
			}
		}()
	})
}

// Stop stops every timer and waits for in-flight ticks to return. Results of
// ticks interrupted by Stop are not recorded.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping scheduler...")

		s.mu.Lock()
		s.stopped = true
		for _, e := range s.entries {
			e.stopTimer()
		}
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		s.logger.Info("Scheduler stopped")
	})
}

func (s *Scheduler) newEntryLocked(rec domain.WorkRecord, h domain.Handler) *entry {
	s.gen++

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &entry{
		key:         rec.Key,
		gen:         s.gen,
		interval:    rec.Interval,
		constraints: rec.Constraints,
		payload:     maps.Clone(rec.Payload),
		handler:     h,
		state:       domain.StateScheduled,
		createdAt:   createdAt,
		backoff:     b,
	}
}

// current returns the live entry for a tick, or false when the tick belongs
// to a replaced, cancelled or finished generation
func (s *Scheduler) current(key string, gen uint64) (*entry, bool) {
	if s.stopped {
		return nil, false
	}
	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		return nil, false
	}
	return e, true
}

// armLocked schedules the next tick of e. Before Start only the due time is
// recorded; Start arms the timers.
func (s *Scheduler) armLocked(e *entry, delay time.Duration) {
	e.nextRun = time.Now().Add(delay)
	if !s.started {
		return
	}
	key, gen := e.key, e.gen
	e.timer = time.AfterFunc(delay, func() { s.dispatch(key, gen) })
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

func (e *entry) info() Info {
	return Info{
		Key:             e.key,
		State:           e.state,
		Interval:        e.interval,
		RequiresNetwork: e.constraints.RequiresNetwork,
		Payload:         maps.Clone(e.payload),
		Attempts:        e.attempts,
		LastError:       e.lastErr,
		NextRun:         e.nextRun,
		CreatedAt:       e.createdAt,
	}
}

func positive[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

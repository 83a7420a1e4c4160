package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/cenkalti/backoff"

	"github.com/cuongbtq/enach-client/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (s *Scheduler) spawnWorkerPool() {
	for i := 0; i < s.concurrency; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}

	s.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", s.concurrency),
	)
}

// workerLoop runs ticks handed over by dispatch until the scheduler stops
func (s *Scheduler) workerLoop(workerNum int) {
	defer s.wg.Done()

	s.logger.Debug("Worker goroutine started", slog.Int("worker_num", workerNum))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Worker goroutine stopping - context canceled",
				slog.Int("worker_num", workerNum),
			)
			return

		case t := <-s.ticks:
			s.runTick(t)
		}
	}
}

// dispatch is called by an entry's timer. Work that needs the network is
// deferred by ConstraintRecheck while offline without consuming its budget.
func (s *Scheduler) dispatch(key string, gen uint64) {
	s.mu.Lock()
	e, ok := s.current(key, gen)
	if !ok {
		s.mu.Unlock()
		return
	}
	needsNetwork := e.constraints.RequiresNetwork
	s.mu.Unlock()

	if needsNetwork && !s.online() {
		s.mu.Lock()
		if e, ok := s.current(key, gen); ok {
			s.logger.Info("Network unavailable, deferring work",
				slog.String("key", key),
				slog.Duration("recheck_after", s.constraintRecheck),
			)
			s.armLocked(e, s.constraintRecheck)
		}
		s.mu.Unlock()
		return
	}

	select {
	case s.ticks <- tick{key: key, gen: gen}:
	case <-s.ctx.Done():
	}
}

func (s *Scheduler) online() bool {
	if s.connectivity == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.constraintRecheck)
	defer cancel()
	return s.connectivity.Online(ctx)
}

func (s *Scheduler) runTick(t tick) {
	s.mu.Lock()
	e, ok := s.current(t.key, t.gen)
	if !ok {
		s.mu.Unlock()
		return
	}
	e.state = domain.StatePolling
	payload := maps.Clone(e.payload)
	h := e.handler
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.tickTimeout)
	outcome, err := s.invoke(ctx, h, t.key, payload)
	cancel()

	s.complete(t, classifyOutcome(outcome, err), err)
}

// invoke runs the handler, turning a panic into a Retry
func (s *Scheduler) invoke(ctx context.Context, h domain.Handler, key string, payload map[string]string) (outcome domain.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Recovered panic in work handler",
				slog.String("key", key),
				slog.Any("panic", rec),
			)
			outcome, err = domain.Retry, fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Handle(ctx, key, payload)
}

// classifyOutcome overrides the handler's outcome where the error says
// otherwise
func classifyOutcome(outcome domain.Outcome, err error) domain.Outcome {
	if err == nil {
		return outcome
	}

	// Never retry malformed input
	if errors.Is(err, domain.ErrInvalidPayload) {
		return domain.Failure
	}

	// Transient errors are retried even when reported as failures
	var retryableErr *domain.RetryableError
	if outcome == domain.Failure && errors.As(err, &retryableErr) {
		return domain.Retry
	}

	return outcome
}

// complete applies the outcome of a tick and arms the next one. It holds
// syncMu until the state is persisted so a concurrent ScheduleRecurring of
// the same key cannot be overwritten by a stale generation.
func (s *Scheduler) complete(t tick, outcome domain.Outcome, err error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	e, ok := s.current(t.key, t.gen)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Discarding result of replaced work",
			slog.String("key", t.key),
			slog.String("outcome", outcome.String()),
		)
		return
	}

	switch outcome {
	case domain.Continue:
		e.attempts = 0
		e.lastErr = ""
		e.backoff.Reset()
		e.state = domain.StateRetrying
		s.armLocked(e, e.interval)

	case domain.Retry:
		e.attempts++
		e.lastErr = errorText(err)
		if e.attempts > s.maxRetries {
			s.logger.Error("Work exhausted its retry budget",
				slog.String("key", e.key),
				slog.Int("attempts", e.attempts),
				slog.Any("error", err),
			)
			s.finishLocked(e, domain.StateFailed, fmt.Sprintf("%v: %s", domain.ErrMaxRetriesExceeded, e.lastErr))
			break
		}

		delay := e.backoff.NextBackOff()
		if delay == backoff.Stop {
			delay = s.maxBackoff
		}
		e.state = domain.StateRetrying
		s.armLocked(e, delay)
		s.logger.Warn("Work failed, retrying...",
			slog.String("key", e.key),
			slog.Int("attempt", e.attempts),
			slog.Int("max_retries", s.maxRetries),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

	case domain.Success:
		s.finishLocked(e, domain.StateSucceeded, "")

	default:
		s.finishLocked(e, domain.StateFailed, errorText(err))
	}

	info := e.info()
	s.mu.Unlock()

	s.persistState(info)
}

// finishLocked moves e into an absorbing terminal state
func (s *Scheduler) finishLocked(e *entry, state domain.State, lastErr string) {
	e.state = state
	e.lastErr = lastErr
	delete(s.entries, e.key)
	s.finished[e.key] = e.info()

	s.logger.Info("Work finished",
		slog.String("key", e.key),
		slog.String("state", string(state)),
		slog.String("last_error", lastErr),
	)
}

func (s *Scheduler) persistState(info Info) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateState(s.ctx, info.Key, info.State, info.Attempts, info.LastError); err != nil {
		s.logger.Error("Failed to persist work state",
			slog.String("key", info.Key),
			slog.Any("error", err),
		)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

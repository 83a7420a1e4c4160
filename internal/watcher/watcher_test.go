package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/enach-client/internal/client"
	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/credentials"
	"github.com/cuongbtq/enach-client/internal/notify"
	"github.com/cuongbtq/enach-client/internal/testutil/fakebackend"
	"github.com/cuongbtq/enach-client/internal/transport"
	"github.com/cuongbtq/enach-client/internal/worker"
	workerdomain "github.com/cuongbtq/enach-client/internal/worker/domain"
	"github.com/cuongbtq/enach-client/shared/logger"
)

const (
	waitFor = 3 * time.Second
	pollDur = 5 * time.Millisecond
)

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
	err error
}

func (r *recorder) Notify(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

type fixture struct {
	backend   *fakebackend.Backend
	scheduler *worker.Scheduler
	watcher   *Watcher
	notes     *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := fakebackend.New(t)
	store := credentials.NewMemoryStore(fakebackend.Token)
	tr, err := transport.NewClient(&transport.Config{BaseURL: backend.URL(), Tokens: store, Logger: logger.NewNop()})
	require.NoError(t, err)
	c, err := client.New(&client.Config{Transport: tr, Tokens: store, Logger: logger.NewNop()})
	require.NoError(t, err)

	scheduler := worker.NewScheduler(&worker.Config{
		Logger:         logger.NewNop(),
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	t.Cleanup(scheduler.Stop)

	notes := &recorder{}
	w, err := New(&Config{
		Scheduler: scheduler,
		Fetcher:   c,
		Notifier:  notes,
		Interval:  10 * time.Millisecond,
		Logger:    logger.NewNop(),
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	return &fixture{backend: backend, scheduler: scheduler, watcher: w, notes: notes}
}

func (f *fixture) state(jobID string) workerdomain.State {
	info, ok := f.scheduler.Lookup(Key(jobID))
	if !ok {
		return ""
	}
	return info.State
}

func TestWatcher_PendingThenCompletedNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	f.backend.AddJob("job-1", "", "pending", "pending", "pending", "completed")

	require.NoError(t, f.watcher.Watch(context.Background(), "job-1"))
	require.Eventually(t, func() bool { return f.state("job-1") == workerdomain.StateSucceeded }, waitFor, pollDur)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, f.backend.StatusCalls("job-1"))

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleCompleted, notes[0].Title)
	assert.Equal(t, "job-1", notes[0].JobID)
	assert.Equal(t, "completed", notes[0].Status)
}

func TestWatcher_FailedJob(t *testing.T) {
	f := newFixture(t)
	f.backend.AddJob("job-2", "OCR confidence too low", "processing", "failed")

	require.NoError(t, f.watcher.Watch(context.Background(), "job-2"))
	require.Eventually(t, func() bool { return f.state("job-2") == workerdomain.StateFailed }, waitFor, pollDur)

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleFailed, notes[0].Title)
	assert.Contains(t, notes[0].Message, "OCR confidence too low")

	info, _ := f.scheduler.Lookup(Key("job-2"))
	assert.Contains(t, info.LastError, "OCR confidence too low")
}

func TestWatcher_TransientErrorsAreRetried(t *testing.T) {
	f := newFixture(t)
	f.backend.AddJob("job-3", "", "validation_required")
	f.backend.FailNext("job-3", 2)

	require.NoError(t, f.watcher.Watch(context.Background(), "job-3"))
	require.Eventually(t, func() bool { return f.state("job-3") == workerdomain.StateSucceeded }, waitFor, pollDur)

	assert.Equal(t, 3, f.backend.StatusCalls("job-3"))
	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleValidationRequired, notes[0].Title)
}

func TestWatcher_Unwatch(t *testing.T) {
	f := newFixture(t)
	f.backend.AddJob("job-4", "", "processing")

	require.NoError(t, f.watcher.Watch(context.Background(), "job-4"))
	require.Eventually(t, func() bool { return f.backend.StatusCalls("job-4") >= 2 }, waitFor, pollDur)

	require.NoError(t, f.watcher.Unwatch(context.Background(), "job-4"))
	time.Sleep(30 * time.Millisecond)
	calls := f.backend.StatusCalls("job-4")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, calls, f.backend.StatusCalls("job-4"))
	assert.Equal(t, workerdomain.StateCancelled, f.state("job-4"))
	assert.Empty(t, f.notes.all())
}

func TestWatcher_WatchBlankJobID(t *testing.T) {
	f := newFixture(t)

	err := f.watcher.Watch(context.Background(), "  ")
	assert.ErrorIs(t, err, workerdomain.ErrInvalidPayload)
}

type stubFetcher struct {
	job domain.Job
	err error
}

func (s stubFetcher) FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	return s.job, s.err
}

func newStubWatcher(t *testing.T, fetcher StatusFetcher, notes notify.Notifier) *Watcher {
	t.Helper()
	scheduler := worker.NewScheduler(&worker.Config{Logger: logger.NewNop()})
	t.Cleanup(scheduler.Stop)

	w, err := New(&Config{Scheduler: scheduler, Fetcher: fetcher, Notifier: notes, Logger: logger.NewNop()})
	require.NoError(t, err)
	return w
}

func TestWatcher_Handle(t *testing.T) {
	tests := []struct {
		name      string
		payload   map[string]string
		fetcher   stubFetcher
		outcome   workerdomain.Outcome
		errIs     error
		wantTitle string
	}{
		{
			name:    "missing job id",
			payload: map[string]string{},
			outcome: workerdomain.Failure,
			errIs:   workerdomain.ErrInvalidPayload,
		},
		{
			name:    "blank job id",
			payload: map[string]string{PayloadJobID: " "},
			outcome: workerdomain.Failure,
			errIs:   workerdomain.ErrInvalidPayload,
		},
		{
			name:    "fetch error",
			payload: map[string]string{PayloadJobID: "job-1"},
			fetcher: stubFetcher{err: &transport.NetworkError{Err: errors.New("refused")}},
			outcome: workerdomain.Retry,
		},
		{
			name:    "pending",
			payload: map[string]string{PayloadJobID: "job-1"},
			fetcher: stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusPending}},
			outcome: workerdomain.Continue,
		},
		{
			name:    "unknown status",
			payload: map[string]string{PayloadJobID: "job-1"},
			fetcher: stubFetcher{job: domain.Job{JobID: "job-1", Status: "queued"}},
			outcome: workerdomain.Continue,
		},
		{
			name:      "upper case completed",
			payload:   map[string]string{PayloadJobID: "job-1"},
			fetcher:   stubFetcher{job: domain.Job{JobID: "job-1", Status: "COMPLETED"}},
			outcome:   workerdomain.Success,
			wantTitle: TitleCompleted,
		},
		{
			name:      "validated",
			payload:   map[string]string{PayloadJobID: "job-1"},
			fetcher:   stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusValidated}},
			outcome:   workerdomain.Success,
			wantTitle: TitleValidated,
		},
		{
			name:      "failed without message",
			payload:   map[string]string{PayloadJobID: "job-1"},
			fetcher:   stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusFailed}},
			outcome:   workerdomain.Failure,
			wantTitle: TitleFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := &recorder{}
			w := newStubWatcher(t, tt.fetcher, notes)

			outcome, err := w.Handle(context.Background(), Key("job-1"), tt.payload)
			assert.Equal(t, tt.outcome, outcome)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}

			got := notes.all()
			if tt.wantTitle == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantTitle, got[0].Title)
		})
	}
}

func TestWatcher_FailedUnknownErrorMessage(t *testing.T) {
	notes := &recorder{}
	w := newStubWatcher(t, stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusFailed}}, notes)

	_, err := w.Handle(context.Background(), Key("job-1"), map[string]string{PayloadJobID: "job-1"})
	require.Error(t, err)

	got := notes.all()
	require.Len(t, got, 1)
	assert.Equal(t, "Job has failed. Unknown error", got[0].Message)
}

func TestWatcher_NotifiesOncePerJob(t *testing.T) {
	notes := &recorder{err: errors.New("sink down")}
	w := newStubWatcher(t, stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusCompleted}}, notes)
	payload := map[string]string{PayloadJobID: "job-1"}

	for range 3 {
		outcome, err := w.Handle(context.Background(), Key("job-1"), payload)
		require.NoError(t, err)
		assert.Equal(t, workerdomain.Success, outcome)
	}
	assert.Len(t, notes.all(), 1)
}

func TestWatcher_NotifiesWatchedJobIDWhenRecordOmitsIt(t *testing.T) {
	notes := &recorder{}
	w := newStubWatcher(t, stubFetcher{job: domain.Job{Status: domain.StatusCompleted}}, notes)

	for _, jobID := range []string{"job-a", "job-b"} {
		outcome, err := w.Handle(context.Background(), Key(jobID), map[string]string{PayloadJobID: jobID})
		require.NoError(t, err)
		assert.Equal(t, workerdomain.Success, outcome)
	}

	got := notes.all()
	require.Len(t, got, 2)
	assert.Equal(t, "job-a", got[0].JobID)
	assert.Equal(t, "job-b", got[1].JobID)
	for _, n := range got {
		_, err := notify.Decode(mustJSON(t, n))
		assert.NoError(t, err)
	}
}

// sequenceFetcher returns its statuses in order and repeats the last one
type sequenceFetcher struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
	calls    int
}

func (s *sequenceFetcher) FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.statuses)-1)
	s.calls++
	return domain.Job{JobID: jobID, Status: s.statuses[i]}, nil
}

func TestWatcher_RewatchAfterReviewNotifiesValidation(t *testing.T) {
	notes := &recorder{}
	fetcher := &sequenceFetcher{statuses: []domain.JobStatus{domain.StatusValidationRequired, domain.StatusValidated}}
	w := newStubWatcher(t, fetcher, notes)
	payload := map[string]string{PayloadJobID: "job-1"}

	for range 2 {
		outcome, err := w.Handle(context.Background(), Key("job-1"), payload)
		require.NoError(t, err)
		assert.Equal(t, workerdomain.Success, outcome)
	}

	got := notes.all()
	require.Len(t, got, 2)
	assert.Equal(t, TitleValidationRequired, got[0].Title)
	assert.Equal(t, TitleValidated, got[1].Title)

	// the same transition is not reported twice
	_, err := w.Handle(context.Background(), Key("job-1"), payload)
	require.NoError(t, err)
	assert.Len(t, notes.all(), 2)
}

func TestWatcher_UnwatchForgetsNotifications(t *testing.T) {
	notes := &recorder{}
	w := newStubWatcher(t, stubFetcher{job: domain.Job{JobID: "job-1", Status: domain.StatusCompleted}}, notes)
	ctx := context.Background()
	payload := map[string]string{PayloadJobID: "job-1"}

	_, err := w.Handle(ctx, Key("job-1"), payload)
	require.NoError(t, err)
	require.NoError(t, w.Unwatch(ctx, "job-1"))
	_, err = w.Handle(ctx, Key("job-1"), payload)
	require.NoError(t, err)

	assert.Len(t, notes.all(), 2)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestKeyAndJobID(t *testing.T) {
	assert.Equal(t, "job_status_abc", Key(" abc "))

	id, ok := JobID("job_status_abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = JobID("job_status_")
	assert.False(t, ok)
	_, ok = JobID("other_abc")
	assert.False(t, ok)
}

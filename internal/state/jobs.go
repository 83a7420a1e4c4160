package state

import (
	"context"
	"io"

	"github.com/cuongbtq/enach-client/internal/client"
	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/resource"
)

// JobClient is the subset of the job client JobState drives
type JobClient interface {
	CreateJob(ctx context.Context, req client.CreateJobRequest) *resource.Call[domain.Job]
	GetJobStatus(ctx context.Context, jobID string) *resource.Call[domain.Job]
	GetJobLiveStatus(ctx context.Context, jobID string) *resource.Call[domain.LiveStatus]
	GetJobResults(ctx context.Context, jobID string) *resource.Call[domain.JobResults]
	ListJobs(ctx context.Context, filter client.ListJobsFilter) *resource.Call[[]domain.Job]
	ValidateJob(ctx context.Context, jobID string, req client.ValidateJobRequest) *resource.Call[domain.ValidationResponse]
	SaveForm(ctx context.Context, jobID string, w io.Writer, newProgress func(total int64) io.Writer) *resource.Call[int64]
}

// JobState keeps the latest result of every job operation
type JobState struct {
	client JobClient

	Create   *Holder[domain.Job]
	Status   *Holder[domain.Job]
	List     *Holder[[]domain.Job]
	Download *Holder[int64]
	Live     *Holder[domain.LiveStatus]
	Results  *Holder[domain.JobResults]
	Validate *Holder[domain.ValidationResponse]
}

// NewJobState creates empty holders bound to c
func NewJobState(c JobClient) *JobState {
	return &JobState{
		client:   c,
		Create:   NewHolder[domain.Job](),
		Status:   NewHolder[domain.Job](),
		List:     NewHolder[[]domain.Job](),
		Download: NewHolder[int64](),
		Live:     NewHolder[domain.LiveStatus](),
		Results:  NewHolder[domain.JobResults](),
		Validate: NewHolder[domain.ValidationResponse](),
	}
}

func (s *JobState) CreateJob(ctx context.Context, req client.CreateJobRequest) *resource.Call[domain.Job] {
	return s.Create.Track(s.client.CreateJob(ctx, req))
}

func (s *JobState) GetJobStatus(ctx context.Context, jobID string) *resource.Call[domain.Job] {
	return s.Status.Track(s.client.GetJobStatus(ctx, jobID))
}

func (s *JobState) GetJobLiveStatus(ctx context.Context, jobID string) *resource.Call[domain.LiveStatus] {
	return s.Live.Track(s.client.GetJobLiveStatus(ctx, jobID))
}

func (s *JobState) GetJobResults(ctx context.Context, jobID string) *resource.Call[domain.JobResults] {
	return s.Results.Track(s.client.GetJobResults(ctx, jobID))
}

func (s *JobState) ListJobs(ctx context.Context, filter client.ListJobsFilter) *resource.Call[[]domain.Job] {
	return s.List.Track(s.client.ListJobs(ctx, filter))
}

func (s *JobState) ValidateJob(ctx context.Context, jobID string, req client.ValidateJobRequest) *resource.Call[domain.ValidationResponse] {
	return s.Validate.Track(s.client.ValidateJob(ctx, jobID, req))
}

// DownloadForm saves the form into w and tracks the byte count
func (s *JobState) DownloadForm(ctx context.Context, jobID string, w io.Writer, newProgress func(total int64) io.Writer) *resource.Call[int64] {
	return s.Download.Track(s.client.SaveForm(ctx, jobID, w, newProgress))
}

// ClearCreate forgets the last creation result
func (s *JobState) ClearCreate() {
	s.Create.Reset()
}

// ClearStatus forgets the last status result
func (s *JobState) ClearStatus() {
	s.Status.Reset()
}

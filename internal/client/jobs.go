package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/dto"
	"github.com/cuongbtq/enach-client/internal/client/mapper"
	"github.com/cuongbtq/enach-client/internal/resource"
	"github.com/cuongbtq/enach-client/internal/transport"
)

// Backend paths
const (
	pathJobs       = "/api/v1/jobs"
	pathJob        = "/api/v1/jobs/{jobId}"
	pathJobForm    = "/api/v1/jobs/{jobId}/form"
	pathJobResults = "/api/v1/jobs/{jobId}/results"
	pathJobLive    = "/api/v1/jobs/{jobId}/live"
	pathJobConfirm = "/api/v1/jobs/{jobId}/validate"
)

// DefaultListLimit is the page size used when none is given
const DefaultListLimit = 20

// Document is a file to upload. Open is called once per upload.
type Document struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// DocumentFromPath builds a document backed by a file on disk
func DocumentFromPath(path string) *Document {
	return &Document{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// CreateJobRequest is the input of CreateJob. Only ChequeImage is required.
type CreateJobRequest struct {
	ChequeImage        *Document
	FormDocument       *Document
	CustomerIdentifier string
	CustomerName       string
	CustomerEmail      string
	CustomerMobile     string
}

// ListJobsFilter narrows ListJobs; empty fields are not sent
type ListJobsFilter struct {
	Status             string
	CustomerIdentifier string
	DateFrom           string
	DateTo             string
	Limit              int
	Offset             int
}

// ValidateJobRequest carries human-reviewed corrections for a job
type ValidateJobRequest struct {
	Corrections   []domain.FieldCorrection
	ReviewerNotes string
	Approve       bool
}

// Download is a streamed form. The caller must close Body.
type Download struct {
	Body io.ReadCloser
	// Size is the content length, -1 when the server did not send one
	Size int64
}

// CreateJob uploads the documents and, on success, schedules the status watcher
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) *resource.Call[domain.Job] {
	return run(c, opCreateJob, func() (domain.Job, error) {
		if req.ChequeImage == nil || req.ChequeImage.Open == nil {
			return domain.Job{}, ErrChequeImageRequired
		}

		body := &transport.Multipart{
			Files: []transport.File{toFile("cheque_image", req.ChequeImage)},
			Fields: []transport.Field{
				{Name: "customer_identifier", Value: strings.TrimSpace(req.CustomerIdentifier)},
				{Name: "customer_name", Value: strings.TrimSpace(req.CustomerName)},
				{Name: "customer_email", Value: strings.TrimSpace(req.CustomerEmail)},
				{Name: "customer_mobile", Value: strings.TrimSpace(req.CustomerMobile)},
			},
		}
		if req.FormDocument != nil && req.FormDocument.Open != nil {
			body.Files = append(body.Files, toFile("enach_form", req.FormDocument))
		}

		resp, err := c.transport.Do(ctx, transport.Request{
			Method:    http.MethodPost,
			Path:      pathJobs,
			Multipart: body,
			Auth:      true,
		})
		if err != nil {
			return domain.Job{}, err
		}

		job, err := c.decodeJob(resp)
		if err != nil {
			return domain.Job{}, err
		}

		c.logger.Info("Job created",
			slog.String("job_id", job.JobID),
			slog.String("status", job.Status.String()),
			slog.Bool("with_form", len(body.Files) > 1),
		)

		c.scheduleWatch(ctx, job.JobID)
		return job, nil
	})
}

func (c *Client) scheduleWatch(ctx context.Context, jobID string) {
	if c.watcher == nil || blank(jobID) {
		return
	}
	// scheduling must outlive the caller that created the job
	if err := c.watcher.Watch(context.WithoutCancel(ctx), jobID); err != nil {
		c.logger.Error("Failed to schedule job status watcher",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// GetJobStatus fetches the full job record
func (c *Client) GetJobStatus(ctx context.Context, jobID string) *resource.Call[domain.Job] {
	if call, ok := requireJobID[domain.Job](jobID); !ok {
		return call
	}
	return run(c, opJobStatus, func() (domain.Job, error) {
		return c.FetchJobStatus(ctx, jobID)
	})
}

// FetchJobStatus is the synchronous form of GetJobStatus used by the watcher.
// Errors are returned unchanged so callers can classify them.
func (c *Client) FetchJobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	if blank(jobID) {
		return domain.Job{}, ErrJobIDRequired
	}

	resp, err := c.transport.Do(ctx, transport.Request{
		Method:     http.MethodGet,
		Path:       pathJob,
		PathParams: map[string]string{"jobId": strings.TrimSpace(jobID)},
		Auth:       true,
	})
	if err != nil {
		return domain.Job{}, err
	}
	return c.decodeJob(resp)
}

// GetJobLiveStatus fetches the real-time view with partial results
func (c *Client) GetJobLiveStatus(ctx context.Context, jobID string) *resource.Call[domain.LiveStatus] {
	if call, ok := requireJobID[domain.LiveStatus](jobID); !ok {
		return call
	}
	return run(c, opLiveStatus, func() (domain.LiveStatus, error) {
		resp, err := c.transport.Do(ctx, transport.Request{
			Method:     http.MethodGet,
			Path:       pathJobLive,
			PathParams: map[string]string{"jobId": strings.TrimSpace(jobID)},
			Auth:       true,
		})
		if err != nil {
			return domain.LiveStatus{}, err
		}

		var d dto.LiveStatus
		if err := resp.Decode(&d); err != nil {
			return domain.LiveStatus{}, err
		}
		if d.Results != nil {
			c.warnInconsistent(d.JobID.Value, d.Results.ValidationReport)
		}
		return mapper.LiveStatusFromDTO(d), nil
	})
}

// GetJobResults fetches the condensed results view
func (c *Client) GetJobResults(ctx context.Context, jobID string) *resource.Call[domain.JobResults] {
	if call, ok := requireJobID[domain.JobResults](jobID); !ok {
		return call
	}
	return run(c, opResults, func() (domain.JobResults, error) {
		resp, err := c.transport.Do(ctx, transport.Request{
			Method:     http.MethodGet,
			Path:       pathJobResults,
			PathParams: map[string]string{"jobId": strings.TrimSpace(jobID)},
			Auth:       true,
		})
		if err != nil {
			return domain.JobResults{}, err
		}

		var d dto.JobResults
		if err := resp.Decode(&d); err != nil {
			return domain.JobResults{}, err
		}
		return mapper.JobResultsFromDTO(d), nil
	})
}

// ListJobs returns one page of jobs in server order
func (c *Client) ListJobs(ctx context.Context, filter ListJobsFilter) *resource.Call[[]domain.Job] {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := max(filter.Offset, 0)

	return run(c, opListJobs, func() ([]domain.Job, error) {
		resp, err := c.transport.Do(ctx, transport.Request{
			Method: http.MethodGet,
			Path:   pathJobs,
			Query: map[string]string{
				"status":              filter.Status,
				"customer_identifier": filter.CustomerIdentifier,
				"date_from":           filter.DateFrom,
				"date_to":             filter.DateTo,
				"limit":               strconv.Itoa(limit),
				"offset":              strconv.Itoa(offset),
			},
			Auth: true,
		})
		if err != nil {
			return nil, err
		}

		var list []dto.Job
		if err := resp.Decode(&list); err != nil {
			return nil, err
		}
		for i := range list {
			c.warnInconsistent(list[i].JobID.Value, list[i].ValidationReport)
		}
		return mapper.JobsFromDTO(list), nil
	})
}

// ValidateJob submits corrections for a job
func (c *Client) ValidateJob(ctx context.Context, jobID string, req ValidateJobRequest) *resource.Call[domain.ValidationResponse] {
	if call, ok := requireJobID[domain.ValidationResponse](jobID); !ok {
		return call
	}
	return run(c, opValidate, func() (domain.ValidationResponse, error) {
		for i, corr := range req.Corrections {
			if blank(corr.FieldName) {
				return domain.ValidationResponse{}, fmt.Errorf("correction %d has no field name", i)
			}
		}

		resp, err := c.transport.Do(ctx, transport.Request{
			Method:     http.MethodPost,
			Path:       pathJobConfirm,
			PathParams: map[string]string{"jobId": strings.TrimSpace(jobID)},
			JSON:       mapper.ValidationRequestToDTO(req.Corrections, req.ReviewerNotes, req.Approve),
			Auth:       true,
		})
		if err != nil {
			return domain.ValidationResponse{}, err
		}

		var d dto.ValidationResponse
		if err := resp.Decode(&d); err != nil {
			return domain.ValidationResponse{}, err
		}

		result := mapper.ValidationResponseFromDTO(d)
		c.logger.Info("Job validation submitted",
			slog.String("job_id", jobID),
			slog.Int("corrections", len(req.Corrections)),
			slog.Bool("approve", req.Approve),
			slog.Any("updated_fields", result.UpdatedFields),
		)
		return result, nil
	})
}

// DownloadForm opens a stream of the generated mandate form
func (c *Client) DownloadForm(ctx context.Context, jobID string) *resource.Call[*Download] {
	if call, ok := requireJobID[*Download](jobID); !ok {
		return call
	}
	return run(c, opDownload, func() (*Download, error) {
		return c.openForm(ctx, jobID)
	})
}

func (c *Client) openForm(ctx context.Context, jobID string) (*Download, error) {
	body, size, err := c.transport.Stream(ctx, transport.Request{
		Method:     http.MethodGet,
		Path:       pathJobForm,
		PathParams: map[string]string{"jobId": strings.TrimSpace(jobID)},
		Auth:       true,
	})
	if err != nil {
		return nil, err
	}
	return &Download{Body: body, Size: size}, nil
}

// SaveForm streams the generated form into w. newProgress, when set, is
// called with the content length and its writer receives a copy of every
// chunk. The call settles with the number of bytes written.
func (c *Client) SaveForm(ctx context.Context, jobID string, w io.Writer, newProgress func(total int64) io.Writer) *resource.Call[int64] {
	if call, ok := requireJobID[int64](jobID); !ok {
		return call
	}
	return run(c, opDownload, func() (int64, error) {
		download, err := c.openForm(ctx, jobID)
		if err != nil {
			return 0, err
		}
		defer download.Body.Close()

		dst := w
		if newProgress != nil {
			if p := newProgress(download.Size); p != nil {
				dst = io.MultiWriter(w, p)
			}
		}

		n, err := io.Copy(dst, download.Body)
		if err != nil {
			return n, fmt.Errorf("failed to copy form: %w", err)
		}

		c.logger.Info("Form downloaded",
			slog.String("job_id", jobID),
			slog.Int64("bytes", n),
		)
		return n, nil
	})
}

func (c *Client) decodeJob(resp *transport.Response) (domain.Job, error) {
	var d dto.Job
	if err := resp.Decode(&d); err != nil {
		return domain.Job{}, err
	}
	c.warnInconsistent(d.JobID.Value, d.ValidationReport)
	return mapper.JobFromDTO(d), nil
}

func (c *Client) warnInconsistent(jobID string, report *dto.ValidationReport) {
	if mapper.Inconsistent(report) {
		c.logger.Warn("Validation report marked valid with errors, treating as invalid",
			slog.String("job_id", jobID),
			slog.Int("errors", len(report.Errors)),
		)
	}
}

func toFile(field string, d *Document) transport.File {
	return transport.File{
		FieldName:   field,
		FileName:    d.Name,
		ContentType: d.ContentType,
		Open:        d.Open,
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

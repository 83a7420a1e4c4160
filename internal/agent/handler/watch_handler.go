package handler

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/enach-client/internal/agent/dto"
	clientdto "github.com/cuongbtq/enach-client/internal/client/dto"
	"github.com/cuongbtq/enach-client/internal/client/mapper"
	"github.com/cuongbtq/enach-client/internal/resource"
	"github.com/cuongbtq/enach-client/internal/watcher"
	"github.com/cuongbtq/enach-client/internal/worker"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// jobLookupTimeout bounds a proxied status fetch
	jobLookupTimeout = 30 * time.Second
)

// ListWatches handles GET /api/v1/watches
// Lists watched jobs ordered by creation time with cursor pagination
func (h *WatchHandler) ListWatches(c *gin.Context) {
	var req dto.ListWatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeWatchCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	infos := h.watches.Snapshot()
	slices.SortFunc(infos, func(a, b worker.Info) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.Key, b.Key)
	})

	page := make([]worker.Info, 0, req.PageSize+1)
	for _, info := range infos {
		if _, ok := watcher.JobID(info.Key); !ok {
			continue
		}
		if req.State != "" && !strings.EqualFold(string(info.State), req.State) {
			continue
		}
		if cursor != nil && !cursor.after(info.CreatedAt, info.Key) {
			continue
		}
		page = append(page, info)
		if len(page) > req.PageSize {
			break
		}
	}

	hasMore := len(page) > req.PageSize
	if hasMore {
		page = page[:req.PageSize]
	}

	resp := dto.ListWatchesResponse{Watches: make([]dto.WatchDTO, len(page))}
	for i, info := range page {
		resp.Watches[i] = toWatchDTO(info)
	}
	if hasMore {
		last := page[len(page)-1]
		resp.NextCursor = EncodeWatchCursor(&WatchCursor{CreatedAt: last.CreatedAt, Key: last.Key})
	}

	c.JSON(http.StatusOK, resp)
}

// GetWatch handles GET /api/v1/watches/:job_id
func (h *WatchHandler) GetWatch(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))

	info, ok := h.watches.Lookup(watcher.Key(jobID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Watch not found",
		})
		return
	}
	c.JSON(http.StatusOK, toWatchDTO(info))
}

// CreateWatch handles POST /api/v1/watches/:job_id
// Starts, or restarts, background status checks for a job
func (h *WatchHandler) CreateWatch(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))

	h.logger.Info("CreateWatch called",
		slog.String("job_id", jobID),
	)

	if err := h.watcher.Watch(c.Request.Context(), jobID); err != nil {
		h.logger.Error("Failed to watch job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to watch job",
		})
		return
	}

	info, ok := h.watches.Lookup(watcher.Key(jobID))
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
		return
	}
	c.JSON(http.StatusAccepted, toWatchDTO(info))
}

// DeleteWatch handles DELETE /api/v1/watches/:job_id
func (h *WatchHandler) DeleteWatch(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))

	h.logger.Info("DeleteWatch called",
		slog.String("job_id", jobID),
	)

	if err := h.watcher.Unwatch(c.Request.Context(), jobID); err != nil {
		h.logger.Error("Failed to unwatch job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to unwatch job",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetJob handles GET /api/v1/jobs/:job_id
// Fetches the job status from the backend and reports it as a resource
func (h *WatchHandler) GetJob(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), jobLookupTimeout)
	defer cancel()

	res, err := h.jobs.GetJobStatus(ctx, jobID).Wait(ctx)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": "Timed out waiting for job status",
		})
		return
	}

	out := &resource.Resource[clientdto.Job]{Status: res.Status, Message: res.Message}
	status := http.StatusOK
	if res.IsSuccess() {
		out.Data = mapper.JobToDTO(res.Data)
	} else {
		status = http.StatusBadGateway
	}
	c.JSON(status, out)
}

func toWatchDTO(info worker.Info) dto.WatchDTO {
	jobID, _ := watcher.JobID(info.Key)
	out := dto.WatchDTO{
		JobID:           jobID,
		Key:             info.Key,
		State:           string(info.State),
		Interval:        info.Interval.String(),
		RequiresNetwork: info.RequiresNetwork,
		Attempts:        info.Attempts,
		LastError:       info.LastError,
		CreatedAt:       info.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !info.State.IsTerminal() && !info.NextRun.IsZero() {
		out.NextRun = info.NextRun.UTC().Format(time.RFC3339)
	}
	return out
}

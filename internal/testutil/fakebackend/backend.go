// Package fakebackend is an in-process e-NACH backend for tests. Job status
// progression is scripted per job id.
package fakebackend

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/enach-client/internal/client/dto"
)

// Demo credentials accepted by the login endpoint
const (
	Username = "demo"
	Password = "secret"
	Token    = "fake-token-demo"
)

// FormPDF is the body served by the form download endpoint
var FormPDF = []byte("%PDF-1.4\n% enach mandate form\n%%EOF\n")

type job struct {
	payload  dto.Job
	script   []string
	statusAt int
	lastErr  string
}

// Backend is the fake server
type Backend struct {
	mu          sync.Mutex
	jobs        map[string]*job
	order       []string
	calls       map[string]int
	uploads     map[string][]string
	requireAuth bool
	failures    map[string]int
	server      *httptest.Server
}

// New starts a fake backend that is shut down when the test ends
func New(tb testing.TB) *Backend {
	tb.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		jobs:        make(map[string]*job),
		calls:       make(map[string]int),
		uploads:     make(map[string][]string),
		failures:    make(map[string]int),
		requireAuth: true,
	}
	b.server = httptest.NewServer(b.router())
	tb.Cleanup(b.server.Close)
	return b
}

// URL is the base URL of the fake backend
func (b *Backend) URL() string {
	return b.server.URL
}

// Close stops the server early, e.g. to simulate an outage
func (b *Backend) Close() {
	b.server.Close()
}

// SetRequireAuth toggles bearer token checks on job endpoints
func (b *Backend) SetRequireAuth(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requireAuth = v
}

// AddJob registers a job whose status walks through statuses on successive
// GETs, sticking on the last one. errorMessage is reported once it fails.
func (b *Backend) AddJob(jobID, errorMessage string, statuses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(statuses) == 0 {
		statuses = []string{"pending"}
	}
	b.jobs[jobID] = &job{
		payload: dto.Job{
			JobID:     dto.String(jobID),
			Status:    dto.String(statuses[0]),
			CreatedAt: dto.String(time.Now().UTC().Format("2006-01-02T15:04:05")),
		},
		script:  statuses,
		lastErr: errorMessage,
	}
	b.order = append(b.order, jobID)
}

// FailNext makes the next n status fetches for jobID answer 503
func (b *Backend) FailNext(jobID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[jobID] = n
}

// StatusCalls returns how many times the status of jobID was fetched
func (b *Backend) StatusCalls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[jobID]
}

// Uploads returns the multipart part names received for jobID
func (b *Backend) Uploads(jobID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads[jobID]...)
}

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   "test",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services":  gin.H{"database": true, "ocr": true},
		})
	})

	auth := r.Group("/api/v1/auth")
	auth.POST("/login", b.login)
	auth.POST("/register", b.register)

	jobs := r.Group("/api/v1/jobs", b.authMiddleware())
	jobs.POST("", b.createJob)
	jobs.GET("", b.listJobs)
	jobs.GET("/:job_id", b.getJob)
	jobs.GET("/:job_id/live", b.liveStatus)
	jobs.GET("/:job_id/results", b.results)
	jobs.GET("/:job_id/form", b.form)
	jobs.POST("/:job_id/validate", b.validate)

	return r
}

func (b *Backend) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		required := b.requireAuth
		b.mu.Unlock()

		if required && c.GetHeader("Authorization") != "Bearer "+Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		c.Next()
	}
}

func (b *Backend) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid request body"})
		return
	}
	if req.Username != Username || req.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": Token, "token_type": "bearer", "expires_in": 3600})
}

func (b *Backend) register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid request body"})
		return
	}
	if req.Role != "api_user" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "INVALID_ROLE", "message": "Unsupported role"}})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": Token, "token_type": "bearer", "expires_in": "3600"})
}

func (b *Backend) createJob(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart body required"})
		return
	}
	cheques := form.File["cheque_image"]
	if len(cheques) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "cheque_image is required"})
		return
	}

	jobID := uuid.New().String()
	payload := dto.Job{
		JobID:              dto.String(jobID),
		Status:             dto.String("pending"),
		ProgressPercentage: dto.Int(0),
		CreatedAt:          dto.String(time.Now().UTC().Format("2006-01-02T15:04:05")),
		RetryCount:         dto.Int(0),
		CustomerIdentifier: dto.OptString(c.PostForm("customer_identifier")),
		CustomerName:       dto.OptString(c.PostForm("customer_name")),
		ChequeData: &dto.ChequeData{
			AccountHolderName: dto.String("RAVI KUMAR"),
			AccountNumber:     dto.String("50100234567891"),
			IFSCCode:          dto.String("HDFC0000123"),
			Amount:            dto.String("1179"),
			ConfidenceScores:  dto.FloatMap{"account_number": 0.98, "ifsc_code": 0.92},
		},
	}
	if len(form.File["enach_form"]) > 0 {
		payload.ENachFormData = &dto.ENachFormData{
			MandateAmount: dto.String("1179"),
			DebitType:     dto.String("FIXED"),
		}
	}

	parts := make([]string, 0, len(form.File)+len(form.Value))
	for name := range form.File {
		parts = append(parts, name)
	}
	for name := range form.Value {
		parts = append(parts, name)
	}

	b.mu.Lock()
	b.jobs[jobID] = &job{payload: payload, script: []string{"pending"}}
	b.order = append(b.order, jobID)
	b.uploads[jobID] = parts
	b.mu.Unlock()

	c.JSON(http.StatusCreated, payload)
}

// advance returns the job's payload for the next status fetch
func (b *Backend) advance(jobID string) (dto.Job, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls[jobID]++

	if n := b.failures[jobID]; n > 0 {
		b.failures[jobID] = n - 1
		return dto.Job{}, http.StatusServiceUnavailable, true
	}

	j, ok := b.jobs[jobID]
	if !ok {
		return dto.Job{}, http.StatusNotFound, false
	}

	status := j.script[min(j.statusAt, len(j.script)-1)]
	if j.statusAt < len(j.script) {
		j.statusAt++
	}
	j.payload.Status = dto.String(status)
	switch status {
	case "completed", "validated", "validation_required":
		j.payload.ProgressPercentage = dto.Int(100)
	case "failed":
		if j.lastErr != "" {
			j.payload.ErrorMessage = dto.String(j.lastErr)
		}
	case "processing":
		j.payload.ProgressPercentage = dto.Int(50)
	}
	return j.payload, http.StatusOK, true
}

func (b *Backend) getJob(c *gin.Context) {
	payload, status, ok := b.advance(c.Param("job_id"))
	switch {
	case !ok:
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
	case status != http.StatusOK:
		c.String(status, "backend busy")
	default:
		c.JSON(http.StatusOK, payload)
	}
}

func (b *Backend) lookup(jobID string) (dto.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[jobID]
	if !ok {
		return dto.Job{}, false
	}
	return j.payload, true
}

func (b *Backend) liveStatus(c *gin.Context) {
	payload, ok := b.lookup(c.Param("job_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, dto.LiveStatus{
		JobID:               payload.JobID,
		Status:              payload.Status,
		ProgressPercentage:  payload.ProgressPercentage,
		CreatedAt:           payload.CreatedAt,
		ProcessingStage:     dto.String("ocr_extraction"),
		EstimatedCompletion: dto.String("30 seconds"),
		AIEnhanced:          dto.Bool(true),
		ResultsAvailable:    dto.Bool(payload.ChequeData != nil),
		Results: &dto.LiveResults{
			ChequeData:             payload.ChequeData,
			ENachFormData:          payload.ENachFormData,
			PopulatedFormAvailable: dto.Bool(false),
		},
	})
}

func (b *Backend) results(c *gin.Context) {
	payload, ok := b.lookup(c.Param("job_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	completed := payload.Status.Value == "completed" || payload.Status.Value == "validated"
	c.JSON(http.StatusOK, dto.JobResults{
		JobID: payload.JobID,
		ProcessingStatus: &dto.ProcessingStatus{
			Status:    payload.Status,
			Progress:  payload.ProgressPercentage,
			Message:   dto.String("Processing " + payload.Status.Value),
			Completed: dto.Bool(completed),
		},
		FormGeneration: &dto.FormGeneration{
			PDFGenerated:    dto.Bool(completed),
			ReadyForSigning: dto.Bool(completed),
		},
	})
}

func (b *Backend) form(c *gin.Context) {
	if _, ok := b.lookup(c.Param("job_id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Form not generated"})
		return
	}
	c.Header("Content-Length", strconv.Itoa(len(FormPDF)))
	c.Data(http.StatusOK, "application/pdf", FormPDF)
}

func (b *Backend) validate(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, ok := b.lookup(jobID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}

	var req dto.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid request body"})
		return
	}

	updated := make([]string, 0, len(req.Corrections))
	for _, corr := range req.Corrections {
		updated = append(updated, corr.FieldName)
	}

	status := "validation_required"
	if req.Approve {
		status = "validated"
	}

	b.mu.Lock()
	if j, ok := b.jobs[jobID]; ok {
		j.payload.Status = dto.String(status)
		j.script = []string{status}
		j.statusAt = 0
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, dto.ValidationResponse{
		JobID:               dto.String(jobID),
		Status:              dto.String(status),
		Message:             dto.String("Corrections applied"),
		UpdatedFields:       updated,
		ValidationTimestamp: dto.String(time.Now().UTC().Format("2006-01-02T15:04:05")),
	})
}

func (b *Backend) listJobs(c *gin.Context) {
	status := strings.ToLower(c.Query("status"))
	customer := c.Query("customer_identifier")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	b.mu.Lock()
	matched := make([]dto.Job, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		j := b.jobs[b.order[i]]
		if status != "" && j.payload.Status.Value != status {
			continue
		}
		if customer != "" && j.payload.CustomerIdentifier.Value != customer {
			continue
		}
		matched = append(matched, j.payload)
	}
	b.mu.Unlock()

	if offset > len(matched) {
		offset = len(matched)
	}
	end := min(offset+max(limit, 0), len(matched))
	c.JSON(http.StatusOK, matched[offset:end])
}

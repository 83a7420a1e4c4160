package client

import (
	"errors"

	"github.com/cuongbtq/enach-client/internal/transport"
)

var (
	// ErrJobIDRequired is returned for operations called with a blank job id
	ErrJobIDRequired = errors.New("job id is required")

	// ErrChequeImageRequired is returned when a job is created without a cheque image
	ErrChequeImageRequired = errors.New("cheque image is required")
)

// Messages surfaced to callers regardless of operation
const (
	MsgNetworkError  = "Network error"
	MsgParseFailure  = "Failed to parse server response"
	MsgEmptyResponse = "Empty response"
)

// operation names a client call and the message used when the server gives none
type operation struct {
	name     string
	fallback string
}

var (
	opLogin      = operation{name: "login", fallback: "Login failed"}
	opRegister   = operation{name: "register", fallback: "Registration failed"}
	opHealth     = operation{name: "health_check", fallback: "Service unavailable"}
	opCreateJob  = operation{name: "create_job", fallback: "Job creation failed"}
	opJobStatus  = operation{name: "get_job_status", fallback: "Failed to get job status"}
	opLiveStatus = operation{name: "get_job_live_status", fallback: "Failed to get live status"}
	opResults    = operation{name: "get_job_results", fallback: "Failed to get job results"}
	opListJobs   = operation{name: "list_jobs", fallback: "Failed to list jobs"}
	opValidate   = operation{name: "validate_job", fallback: "Validation failed"}
	opDownload   = operation{name: "download_form", fallback: "Failed to download form"}
)

// Message converts an operation error into the text shown to the caller
func Message(err error, fallback string) string {
	var apiErr *transport.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrJobIDRequired), errors.Is(err, ErrChequeImageRequired):
		return err.Error()
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	case errors.Is(err, transport.ErrEmptyResponse):
		return MsgEmptyResponse
	case transport.IsParseError(err):
		return MsgParseFailure
	case transport.IsNetworkError(err):
		return MsgNetworkError
	case errors.Is(err, transport.ErrFileUnavailable):
		return fallback + ": " + err.Error()
	default:
		return fallback
	}
}

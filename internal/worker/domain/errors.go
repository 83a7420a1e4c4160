package domain

import "errors"

var (
	// ErrRecordNotFound is returned when a work record cannot be found in the database
	ErrRecordNotFound = errors.New("work record not found")

	// ErrInvalidPayload is returned when a work payload is missing required input
	ErrInvalidPayload = errors.New("invalid work payload")

	// ErrMaxRetriesExceeded is returned when work has exhausted its retry budget
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrNoHandler is returned when no handler is registered for a key
	ErrNoHandler = errors.New("no handler registered for key")

	// ErrSchedulerStopped is returned when scheduling on a stopped scheduler
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// RetryableError wraps transient errors that should trigger a retry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

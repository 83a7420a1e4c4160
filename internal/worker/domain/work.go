package domain

import (
	"context"
	"time"
)

// Constraints gate when a tick may run
type Constraints struct {
	RequiresNetwork bool
}

// WorkRecord is the persisted form of a recurring unit of work
type WorkRecord struct {
	Key         string
	Interval    time.Duration
	Constraints Constraints
	Payload     map[string]string
	State       State
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Handler runs one tick of the work registered under a key prefix. The
// returned error is recorded for Retry and Failure outcomes.
type Handler interface {
	Handle(ctx context.Context, key string, payload map[string]string) (Outcome, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, key string, payload map[string]string) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, key string, payload map[string]string) (Outcome, error) {
	return f(ctx, key, payload)
}

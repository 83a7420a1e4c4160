// Package client is the e-NACH job lifecycle client. Every operation runs in
// its own goroutine and returns a resource.Call that is Loading until it
// settles exactly once to Success or Error.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/enach-client/internal/credentials"
	"github.com/cuongbtq/enach-client/internal/resource"
	"github.com/cuongbtq/enach-client/internal/transport"
)

// JobWatcher schedules background status checks for a created job
type JobWatcher interface {
	Watch(ctx context.Context, jobID string) error
}

// Config holds the client's collaborators. They are constructed once at
// process start and passed in explicitly.
type Config struct {
	Transport *transport.Client
	Tokens    credentials.Store
	// Watcher is optional; without it created jobs are not watched
	Watcher JobWatcher
	Logger  *slog.Logger
}

// Client runs job lifecycle operations against the backend
type Client struct {
	transport *transport.Client
	tokens    credentials.Store
	watcher   JobWatcher
	logger    *slog.Logger
}

// New creates a new client
func New(config *Config) (*Client, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if config.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		transport: config.Transport,
		tokens:    config.Tokens,
		watcher:   config.Watcher,
		logger:    logger,
	}, nil
}

// SetWatcher attaches the watcher used after job creation. It must be called
// before the client is shared between goroutines.
func (c *Client) SetWatcher(w JobWatcher) {
	c.watcher = w
}

// run executes fn asynchronously and converts its outcome into a settled
// resource. Panics become the operation's fallback message.
func run[T any](c *Client, op operation, fn func() (T, error)) *resource.Call[T] {
	onPanic := func(rec any) {
		c.logger.Error("Recovered panic in client operation",
			slog.String("operation", op.name),
			slog.Any("panic", rec),
		)
	}

	return resource.Go(func() *resource.Resource[T] {
		v, err := fn()
		if err != nil {
			msg := Message(err, op.fallback)
			c.logger.Warn("Client operation failed",
				slog.String("operation", op.name),
				slog.String("message", msg),
				slog.Any("error", err),
			)
			return resource.Error[T](msg)
		}
		return resource.Success(v)
	}, op.fallback, onPanic)
}

// requireJobID settles immediately when jobID is blank
func requireJobID[T any](jobID string) (*resource.Call[T], bool) {
	if blank(jobID) {
		return resource.Settled(resource.Error[T](ErrJobIDRequired.Error())), false
	}
	return nil, true
}

// Package resource provides the tri-state envelope around asynchronous
// results and the two-phase Call used by every client operation.
package resource

import (
	"context"
	"encoding/json"
	"sync"
)

// Status is the active state of a Resource
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Resource is exactly one of Loading, Success(Data) or Error(Message). A nil
// *Resource means the operation has not been attempted.
type Resource[T any] struct {
	Status  Status
	Data    T
	Message string
}

// Loading returns a loading resource
func Loading[T any]() *Resource[T] {
	return &Resource[T]{Status: StatusLoading}
}

// Success returns a settled resource carrying data
func Success[T any](data T) *Resource[T] {
	return &Resource[T]{Status: StatusSuccess, Data: data}
}

// Error returns a settled resource carrying a message
func Error[T any](message string) *Resource[T] {
	return &Resource[T]{Status: StatusError, Message: message}
}

func (r *Resource[T]) IsLoading() bool { return r != nil && r.Status == StatusLoading }
func (r *Resource[T]) IsSuccess() bool { return r != nil && r.Status == StatusSuccess }
func (r *Resource[T]) IsError() bool   { return r != nil && r.Status == StatusError }

// IsSettled reports whether the resource is Success or Error
func (r *Resource[T]) IsSettled() bool {
	return r.IsSuccess() || r.IsError()
}

// MarshalJSON renders only the fields of the active state
func (r *Resource[T]) MarshalJSON() ([]byte, error) {
	switch r.Status {
	case StatusSuccess:
		return json.Marshal(struct {
			Status Status `json:"status"`
			Data   T      `json:"data"`
		}{r.Status, r.Data})
	case StatusError:
		return json.Marshal(struct {
			Status  Status `json:"status"`
			Message string `json:"message"`
		}{r.Status, r.Message})
	default:
		return json.Marshal(struct {
			Status Status `json:"status"`
		}{r.Status})
	}
}

// Call is an in-flight operation. It is Loading until it settles, then it
// holds exactly one Success or Error forever.
type Call[T any] struct {
	once    sync.Once
	done    chan struct{}
	mu      sync.RWMutex
	settled *Resource[T]
}

// NewCall returns a call in the Loading state
func NewCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// Settled returns a call that has already settled to r
func Settled[T any](r *Resource[T]) *Call[T] {
	c := NewCall[T]()
	c.settle(r)
	return c
}

// Go runs fn in its own goroutine and settles the call with its outcome. A
// panic in fn settles the call with recoverMessage.
func Go[T any](fn func() *Resource[T], recoverMessage string, onPanic func(any)) *Call[T] {
	c := NewCall[T]()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				if onPanic != nil {
					onPanic(rec)
				}
				c.settle(Error[T](recoverMessage))
			}
		}()
		c.settle(fn())
	}()
	return c
}

// Succeed settles the call with data. Only the first settle has any effect.
func (c *Call[T]) Succeed(data T) bool {
	return c.settle(Success(data))
}

// Fail settles the call with message. Only the first settle has any effect.
func (c *Call[T]) Fail(message string) bool {
	return c.settle(Error[T](message))
}

func (c *Call[T]) settle(r *Resource[T]) bool {
	if r == nil || !r.IsSettled() {
		r = Error[T]("operation finished without a result")
	}
	applied := false
	c.once.Do(func() {
		c.mu.Lock()
		c.settled = r
		c.mu.Unlock()
		close(c.done)
		applied = true
	})
	return applied
}

// Done is closed once the call has settled
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Current returns Loading before the call settles and the settled value after
func (c *Call[T]) Current() *Resource[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settled == nil {
		return Loading[T]()
	}
	return c.settled
}

// Wait blocks until the call settles or ctx is done. A cancelled wait does
// not settle the call.
func (c *Call[T]) Wait(ctx context.Context) (*Resource[T], error) {
	select {
	case <-c.done:
		return c.Current(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the call settles and returns its value
func (c *Call[T]) Result() *Resource[T] {
	<-c.done
	return c.Current()
}

// Emissions returns the sequence a subscriber observes: Loading followed by
// the settled value. The channel is closed after the second value.
func (c *Call[T]) Emissions() <-chan *Resource[T] {
	out := make(chan *Resource[T], 2)
	out <- Loading[T]()
	go func() {
		out <- c.Result()
		close(out)
	}()
	return out
}

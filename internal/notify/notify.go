// Package notify delivers user-facing job notifications.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Notification is one user-facing message about a job
type Notification struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Decode parses a notification published by AMQPNotifier
func Decode(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.JobID == "" {
		return Notification{}, fmt.Errorf("notification has no job_id")
	}
	return n, nil
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log sink
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, n.Title,
		slog.String("job_id", n.JobID),
		slog.String("status", n.Status),
		slog.String("message", n.Message),
	)
	return nil
}

// Publisher is the part of the RabbitMQ client AMQPNotifier needs
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// AMQPNotifier publishes notifications as JSON messages
type AMQPNotifier struct {
	publisher Publisher
}

// NewAMQPNotifier creates a RabbitMQ sink
func NewAMQPNotifier(p Publisher) *AMQPNotifier {
	return &AMQPNotifier{publisher: p}
}

func (a *AMQPNotifier) Notify(ctx context.Context, n Notification) error {
	if err := a.publisher.PublishJSON(ctx, n); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried; their
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned by publish and consume calls on a closed client
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
	PrefetchCount      int
}

// URL returns the AMQP URL for the configured broker
func (c *Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.VHost,
	)
}

// Client publishes job notifications to, and consumes them from, a RabbitMQ exchange
type Client struct {
	config  *Config
	logger  *slog.Logger
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewClient creates a new RabbitMQ client and declares the notification topology
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with exponential backoff
func (c *Client) connect() error {
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	if c.config.RetryInterval > 0 {
		expBackoff.InitialInterval = c.config.RetryInterval
	}
	policy := backoff.WithMaxRetries(expBackoff, uint64(attempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err := amqp.DialConfig(c.config.URL(), amqpConfig)
		if err != nil {
			c.logger.Error("Failed to connect to RabbitMQ",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
			)
			return err
		}
		c.conn = conn
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
	}

	channel, err := c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}
	c.channel = channel

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

// setup declares exchange, queue, and bindings
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if c.config.QueueName == "" {
		// publish-only client
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, body []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		return ErrNotConnected
	}

	return c.channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishWithRetry publishes a message with retry logic and exponential backoff
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	backoffMult := c.config.PublishBackoffMult
	if backoffMult <= 0 {
		backoffMult = 2.0
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = baseDelay
	expBackoff.Multiplier = backoffMult
	expBackoff.RandomizationFactor = 0
	expBackoff.MaxElapsedTime = 0
	expBackoff.Reset()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.publish(ctx, body, contentType)
		if err == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.Int("attempt", attempt+1),
				slog.Int("body_size", len(body)),
				slog.String("content_type", contentType),
			)
			return nil
		}
		if errors.Is(err, ErrNotConnected) {
			return err
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := expBackoff.NextBackOff()
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("publish canceled: %w", ctx.Err())
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// PublishJSON marshals v and publishes it with retry
func (c *Client) PublishJSON(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.PublishWithRetry(ctx, body, "application/json")
}

// Consume starts consuming messages from the queue with manual acknowledgement
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		return nil, ErrNotConnected
	}
	if c.config.QueueName == "" {
		return nil, fmt.Errorf("no queue configured to consume from")
	}

	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	messages, err := c.channel.Consume(
		c.config.QueueName, // queue
		consumerTag,        // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)

	return messages, nil
}

// Close closes the RabbitMQ connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Closing RabbitMQ connection")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *Client) isConnectedLocked() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

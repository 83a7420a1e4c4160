package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultPollInterval matches the platform minimum for periodic background work
	DefaultPollInterval = 15 * time.Minute
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Poller   PollerConfig   `yaml:"poller"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// APIConfig holds the e-NACH backend settings
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// AuthConfig holds bearer token storage settings
type AuthConfig struct {
	// TokenFile persists the token between CLI invocations; empty keeps it in memory
	TokenFile string `yaml:"token_file"`
}

// PollerConfig holds background status polling settings. DisableWatch stops
// job creation from scheduling the status watcher.
type PollerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Concurrency       int           `yaml:"concurrency"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	SkipNetworkCheck  bool          `yaml:"skip_network_check"`
	ConstraintRecheck time.Duration `yaml:"constraint_recheck"`
	ResyncInterval    time.Duration `yaml:"resync_interval"`
	DisableWatch      bool          `yaml:"disable_watch"`
}

// DatabaseConfig holds work-record store configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds the agent's local control API configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when the file does not exist
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// Default returns a configuration populated only with defaults
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values with sensible defaults
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "enach-client"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "enach-client/" + orDefault(c.App.Version, "dev")
	}

	if c.Poller.Interval <= 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency <= 0 {
		c.Poller.Concurrency = 2
	}
	if c.Poller.MaxRetries <= 0 {
		c.Poller.MaxRetries = 5
	}
	if c.Poller.InitialBackoff <= 0 {
		c.Poller.InitialBackoff = 30 * time.Second
	}
	if c.Poller.MaxBackoff <= 0 {
		c.Poller.MaxBackoff = 5 * time.Hour
	}
	if c.Poller.ConstraintRecheck <= 0 {
		c.Poller.ConstraintRecheck = time.Minute
	}
	if c.Poller.ResyncInterval <= 0 {
		c.Poller.ResyncInterval = time.Minute
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "enach-work.db"
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "job.status"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8089
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
}

// ValidateClientConfig checks the settings every binary needs to talk to the backend
func (c *Config) ValidateClientConfig() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url: %q", c.API.BaseURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api base_url scheme: %q (must be http or https)", u.Scheme)
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be greater than 0")
	}

	return nil
}

// ValidateAgentConfig checks the settings the long-running agent needs on top of the client ones
func (c *Config) ValidateAgentConfig() error {
	if err := c.ValidateClientConfig(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Poller.Concurrency <= 0 {
		return fmt.Errorf("poller concurrency must be greater than 0")
	}

	if c.Poller.MaxRetries <= 0 {
		return fmt.Errorf("poller max_retries must be greater than 0")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

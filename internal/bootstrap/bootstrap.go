// Package bootstrap builds the collaborators shared by the agent and the CLI
// from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/enach-client/internal/client"
	"github.com/cuongbtq/enach-client/internal/config"
	"github.com/cuongbtq/enach-client/internal/credentials"
	"github.com/cuongbtq/enach-client/internal/notify"
	"github.com/cuongbtq/enach-client/internal/transport"
	"github.com/cuongbtq/enach-client/internal/watcher"
	"github.com/cuongbtq/enach-client/internal/worker"
	"github.com/cuongbtq/enach-client/internal/worker/storage"
	"github.com/cuongbtq/enach-client/shared/database"
	"github.com/cuongbtq/enach-client/shared/logger"
	"github.com/cuongbtq/enach-client/shared/rabbitmq"
)

// TokenEnv seeds an empty token store
const TokenEnv = "ENACH_API_TOKEN"

// Options selects which optional pieces Build wires
type Options struct {
	// Publish attaches the RabbitMQ notification sink when enabled in config
	Publish bool
}

// App holds the wired collaborators
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Database  *database.Client
	Store     *storage.Storage
	RabbitMQ  *rabbitmq.Client
	Tokens    credentials.Store
	Client    *client.Client
	Scheduler *worker.Scheduler
	Watcher   *watcher.Watcher
}

// InitLogger builds the process logger from the logging section
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// InitDatabase opens the work-record database
func InitDatabase(cfg *config.DatabaseConfig, log *slog.Logger) (*database.Client, error) {
	dbConfig := &database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return database.NewClient(dbConfig, log)
}

// InitRabbitMQ connects to the broker. An empty queue gives a publish-only client.
func InitRabbitMQ(cfg *config.RabbitMQConfig, queue string, log *slog.Logger) (*rabbitmq.Client, error) {
	rmqConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          queue,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}

	return rabbitmq.NewClient(rmqConfig, log)
}

// InitTokens opens the token store. A file store is used when a token file
// is configured. TokenEnv seeds the store only when it holds no token.
func InitTokens(cfg *config.AuthConfig) (credentials.Store, error) {
	var store credentials.Store
	if cfg.TokenFile != "" {
		fs, err := credentials.NewFileStore(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		store = fs
	} else {
		store = credentials.NewMemoryStore("")
	}

	if seed := os.Getenv(TokenEnv); seed != "" && store.Token() == "" {
		if err := store.SaveToken(seed); err != nil {
			return nil, fmt.Errorf("failed to seed token: %w", err)
		}
	}
	return store, nil
}

// Build wires the client, the scheduler and the status watcher. The
// scheduler is returned unstarted.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (app *App, err error) {
	app = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	app.Database, err = InitDatabase(&cfg.Database, log.Component("database"))
	if err != nil {
		return app, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.Store = storage.NewStorage(app.Database.GetDB(), log.Component("work_store"))
	if err = app.Store.Migrate(ctx); err != nil {
		return app, fmt.Errorf("failed to migrate work store: %w", err)
	}

	notifiers := notify.Multi{notify.NewLogNotifier(log.Component("notifications"))}
	if opts.Publish && cfg.RabbitMQ.Enabled {
		app.RabbitMQ, err = InitRabbitMQ(&cfg.RabbitMQ, "", log.Component("rabbitmq"))
		if err != nil {
			return app, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		notifiers = append(notifiers, notify.NewAMQPNotifier(app.RabbitMQ))
	}

	app.Tokens, err = InitTokens(&cfg.Auth)
	if err != nil {
		return app, fmt.Errorf("failed to initialize token store: %w", err)
	}

	tr, err := transport.NewClient(&transport.Config{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Tokens:    app.Tokens,
		Logger:    log.Component("transport"),
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize transport: %w", err)
	}

	app.Client, err = client.New(&client.Config{
		Transport: tr,
		Tokens:    app.Tokens,
		Logger:    log.Component("client"),
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize client: %w", err)
	}

	var connectivity worker.Connectivity
	if !cfg.Poller.SkipNetworkCheck {
		connectivity, err = worker.NewDialChecker(cfg.API.BaseURL, 0)
		if err != nil {
			return app, fmt.Errorf("failed to initialize connectivity check: %w", err)
		}
	}

	app.Scheduler = worker.NewScheduler(&worker.Config{
		Logger:            log.Component("scheduler"),
		Store:             app.Store,
		Connectivity:      connectivity,
		Concurrency:       cfg.Poller.Concurrency,
		MaxRetries:        cfg.Poller.MaxRetries,
		InitialBackoff:    cfg.Poller.InitialBackoff,
		MaxBackoff:        cfg.Poller.MaxBackoff,
		ConstraintRecheck: cfg.Poller.ConstraintRecheck,
	})

	app.Watcher, err = watcher.New(&watcher.Config{
		Scheduler:       app.Scheduler,
		Fetcher:         app.Client,
		Notifier:        notifiers,
		Interval:        cfg.Poller.Interval,
		RequiresNetwork: !cfg.Poller.SkipNetworkCheck,
		Logger:          log.Component("status_watcher"),
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize watcher: %w", err)
	}

	if !cfg.Poller.DisableWatch {
		app.Client.SetWatcher(app.Watcher)
	}

	return app, nil
}

// Close stops the scheduler and releases every connection
func (a *App) Close() error {
	var errs []error

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close RabbitMQ: %w", err))
		}
	}
	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/enach-client/internal/agent/handler"
	"github.com/cuongbtq/enach-client/internal/agent/router"
	"github.com/cuongbtq/enach-client/internal/bootstrap"
	"github.com/cuongbtq/enach-client/internal/config"
	"github.com/cuongbtq/enach-client/internal/state"
	"github.com/cuongbtq/enach-client/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	defaultConfigPath := os.Getenv("ENACH_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/enach-agent/config.yaml"
	}

	configPath := flag.String("config", defaultConfigPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAgentConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting e-NACH agent",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("api", cfg.API.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, appLogger, bootstrap.Options{Publish: true})
	if err != nil {
		return err
	}

	cleanup := func() {
		if err := app.Close(); err != nil {
			appLogger.Error("Failed to close resources", slog.Any("error", err))
		}
	}
	defer cleanup()

	restored, err := app.Scheduler.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore watched jobs: %w", err)
	}
	appLogger.Info("Restored watched jobs", slog.Int("count", restored))

	app.Scheduler.Start(ctx)
	go resyncLoop(ctx, app.Scheduler, cfg.Poller.ResyncInterval, appLogger.Component("resync"))

	r := initRouter(cfg, &handler.Dependencies{
		Logger:   appLogger.Component("http"),
		Service:  cfg.App.Name,
		Watches:  app.Scheduler,
		Watcher:  app.Watcher,
		Jobs:     state.NewJobState(app.Client),
		Database: app.Database,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("HTTP server listening", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server", slog.Any("error", err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	cancel()
	appLogger.Info("Agent stopped gracefully")
	return nil
}

// resyncLoop picks up watches added or removed by other processes sharing
// the work store
func resyncLoop(ctx context.Context, scheduler *worker.Scheduler, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			added, err := scheduler.Restore(ctx)
			if err != nil {
				logger.Warn("Failed to resync watched jobs", slog.Any("error", err))
				continue
			}
			if added > 0 {
				logger.Info("Picked up new watched jobs", slog.Int("count", added))
			}
		}
	}
}

func initRouter(cfg *config.Config, deps *handler.Dependencies) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return router.SetupRouter(deps)
}

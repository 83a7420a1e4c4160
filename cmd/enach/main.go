package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/enach-client/internal/bootstrap"
	"github.com/cuongbtq/enach-client/internal/config"
	"github.com/cuongbtq/enach-client/shared/logger"
)

var version = "dev"

// cli carries the per-invocation configuration and the lazily built app
type cli struct {
	cfgFile   string
	apiURL    string
	tokenFile string
	logLevel  string

	cfg    *config.Config
	logger *logger.Logger
	app    *bootstrap.App
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "enach",
		Short: "e-NACH mandate processing client",
		Long: `enach submits cheque images and e-NACH mandate forms for processing,
tracks the resulting jobs and downloads the generated mandate forms.

Jobs created here are watched in the background by enach-agent, which
shares the work store configured under "database".`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}

	defaultConfigPath := os.Getenv("ENACH_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/enach/config.yaml"
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", defaultConfigPath, "config file")
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", "", "backend base URL (overrides api.base_url)")
	root.PersistentFlags().StringVar(&c.tokenFile, "token-file", "", "token file (overrides auth.token_file)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(loginCmd(c))
	root.AddCommand(registerCmd(c))
	root.AddCommand(logoutCmd(c))
	root.AddCommand(healthCmd(c))
	root.AddCommand(createCmd(c))
	root.AddCommand(statusCmd(c))
	root.AddCommand(liveCmd(c))
	root.AddCommand(resultsCmd(c))
	root.AddCommand(listCmd(c))
	root.AddCommand(validateCmd(c))
	root.AddCommand(downloadCmd(c))
	root.AddCommand(watchCmd(c))
	root.AddCommand(unwatchCmd(c))
	root.AddCommand(watchesCmd(c))
	root.AddCommand(notificationsCmd(c))

	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	c.close()
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load reads the config and sets up logging. A missing config file is fine
// as long as the flags supply the backend URL.
func (c *cli) load(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(c.cfgFile)
	if err != nil {
		return err
	}

	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if c.tokenFile != "" {
		cfg.Auth.TokenFile = c.tokenFile
	}
	if cfg.Auth.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.Auth.TokenFile = filepath.Join(home, ".config", "enach", "token.json")
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	if err := cfg.ValidateClientConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.cfg = cfg
	c.logger = log
	return nil
}

// build wires the client on first use. The scheduler stays unstarted unless
// a command follows a watch in the foreground.
func (c *cli) build(ctx context.Context) (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	app, err := bootstrap.Build(ctx, c.cfg, c.logger, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func (c *cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			c.logger.Error("Failed to close resources", slog.Any("error", err))
		}
		c.app = nil
	}
	if c.logger != nil {
		c.logger.Close()
	}
}

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/enach-client/internal/state"
)

const passwordEnv = "ENACH_PASSWORD"

func loginCmd(c *cli) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the bearer token",
		Long: `Log in with a username and password. The issued token is saved to the
token file and used by every other command.

The password may be given with --password or the ENACH_PASSWORD variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			auth := state.NewAuthState(app.Client, c.logger.Component("auth"))
			token, err := await(cmd.Context(), auth.DoLogin(cmd.Context(), username, passwordOrEnv(password)))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token expires in %ds)\n", username, token.ExpiresIn)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func registerCmd(c *cli) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an API user and store its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			auth := state.NewAuthState(app.Client, c.logger.Component("auth"))
			if _, err := await(cmd.Context(), auth.DoRegister(cmd.Context(), username, email, passwordOrEnv(password))); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			if err := state.NewAuthState(app.Client, c.logger.Component("auth")).Logout(); err != nil {
				return fmt.Errorf("failed to log out: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func healthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			health, err := await(cmd.Context(), app.Client.HealthCheck(cmd.Context()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:  %s\n", health.Status)
			fmt.Fprintf(out, "Version: %s\n", health.Version)

			services := make([]string, 0, len(health.Services))
			for name := range health.Services {
				services = append(services, name)
			}
			sort.Strings(services)
			for _, name := range services {
				fmt.Fprintf(out, "  %-12s %s\n", name, upDown(health.Services[name]))
			}

			if !health.Healthy() {
				return fmt.Errorf("backend is unhealthy")
			}
			return nil
		},
	}
}

func passwordOrEnv(password string) string {
	if password != "" {
		return password
	}
	return os.Getenv(passwordEnv)
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

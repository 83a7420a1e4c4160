package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/enach-client/internal/bootstrap"
	"github.com/cuongbtq/enach-client/internal/watcher"
	"github.com/cuongbtq/enach-client/internal/worker"
)

func watchCmd(c *cli) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Register a job for background status checks",
		Long: `Register a job for background status checks. The watch is stored in the
work store and run by enach-agent. With --follow the checks run in this
process until the job reaches a final state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.build(ctx)
			if err != nil {
				return err
			}

			if err := app.Watcher.Watch(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to watch job: %w", err)
			}

			if !follow {
				fmt.Fprintf(cmd.OutOrStdout(), "Watching job %s every %s\n", args[0], c.cfg.Poller.Interval)
				return nil
			}

			info, err := followWatch(ctx, app, watcher.Key(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", args[0], info.State)
			if info.LastError != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s\n", info.LastError)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "run the checks here until the job settles")
	return cmd
}

// followWatch starts the local scheduler and waits for key to finish
func followWatch(ctx context.Context, app *bootstrap.App, key string) (worker.Info, error) {
	app.Scheduler.Start(ctx)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if info, ok := app.Scheduler.Lookup(key); ok && info.State.IsTerminal() {
			return info, nil
		}

		select {
		case <-ctx.Done():
			return worker.Info{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func unwatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "unwatch JOB_ID",
		Short: "Stop background status checks for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.Watcher.Unwatch(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to unwatch job: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stopped watching job %s\n", args[0])
			return nil
		},
	}
}

func watchesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watches",
		Short: "List jobs registered for background status checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			if _, err := app.Scheduler.Restore(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load watched jobs: %w", err)
			}

			watches := app.Scheduler.Snapshot()
			if len(watches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs are being watched.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tSTATE\tINTERVAL\tATTEMPTS\tLAST ERROR")
			for _, info := range watches {
				jobID, ok := watcher.JobID(info.Key)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", jobID, info.State, info.Interval, info.Attempts, info.LastError)
			}
			return w.Flush()
		},
	}
}

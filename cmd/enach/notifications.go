package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/enach-client/internal/bootstrap"
	"github.com/cuongbtq/enach-client/internal/notify"
)

func notificationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Job notifications published by enach-agent",
	}

	var consumerTag string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print job notifications as they arrive",
		Long: `Consume the notification queue configured under rabbitmq.queue and print
each notification. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rmq := c.cfg.RabbitMQ
			if !rmq.Enabled {
				return fmt.Errorf("rabbitmq is not enabled in the config")
			}
			if rmq.Queue.Name == "" {
				return fmt.Errorf("rabbitmq queue name is required to tail notifications")
			}

			rabbit, err := bootstrap.InitRabbitMQ(&rmq, rmq.Queue.Name, c.logger.Component("rabbitmq"))
			if err != nil {
				return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
			}
			defer rabbit.Close()

			deliveries, err := rabbit.Consume(consumerTag)
			if err != nil {
				return err
			}

			return tailNotifications(cmd.Context(), deliveries, cmd.OutOrStdout(), c.logger.Component("notifications"))
		},
	}
	tail.Flags().StringVar(&consumerTag, "consumer-tag", "", "AMQP consumer tag (default generated by the broker)")

	cmd.AddCommand(tail)
	return cmd
}

// tailNotifications prints every delivery until ctx is done or the channel
// closes. Undecodable messages are rejected without requeue.
func tailNotifications(ctx context.Context, deliveries <-chan amqp.Delivery, out io.Writer, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}

			n, err := notify.Decode(delivery.Body)
			if err != nil {
				logger.Error("Failed to parse notification",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					logger.Error("Failed to NACK malformed notification", slog.Any("error", nackErr))
				}
				continue
			}

			fmt.Fprintf(out, "%s  %s  %s: %s\n", n.Timestamp.Local().Format(time.DateTime), n.JobID, n.Title, n.Message)

			if err := delivery.Ack(false); err != nil {
				logger.Error("Failed to ACK notification",
					slog.String("job_id", n.JobID),
					slog.Any("error", err),
				)
			}
		}
	}
}

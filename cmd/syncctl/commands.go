package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/velaro/ordersync/internal/infrastructure/bootstrap"
)

var sweepOutboxCmd = &cobra.Command{
	Use:   "sweep-outbox",
	Short: "Redeliver due conversion events once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *bootstrap.Container) error {
			report, err := app.Outbox.Sweep(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			app.Logger.Info("Outbox sweep finished",
				zap.Int("scanned", report.Scanned),
				zap.Int("sent", report.Sent),
				zap.Int("rescheduled", report.Rescheduled),
				zap.Int("exhausted", report.Exhausted),
				zap.Int("errors", report.Errors),
			)
			return printJSON(cmd, report)
		})
	},
}

var reapQueueCmd = &cobra.Command{
	Use:   "reap-queue",
	Short: "Finalize queue orders whose confirmation window has passed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *bootstrap.Container) error {
			report, err := app.Reaper.Reap(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("reap: %w", err)
			}
			app.Logger.Info("Queue reap finished",
				zap.Int("scanned", report.Scanned),
				zap.Int("finalized", report.Finalized),
				zap.Int("sync_failed", report.SyncFailed),
				zap.Int("skipped", report.Skipped),
				zap.Int("errors", report.Errors),
			)
			return printJSON(cmd, report)
		})
	},
}

var resyncCmd = &cobra.Command{
	Use:   "resync <order-id>",
	Short: "Retry the WMS sync of an order in sync_error",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id %q: %w", args[0], err)
		}
		return withContainer(cmd.Context(), func(ctx context.Context, app *bootstrap.Container) error {
			result, err := app.Orders.Resync(ctx, id)
			if err != nil {
				return fmt.Errorf("resync %s: %w", id, err)
			}
			return printJSON(cmd, result)
		})
	},
}

func init() {
	rootCmd.AddCommand(sweepOutboxCmd, reapQueueCmd, resyncCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/velaro/ordersync/internal/infrastructure/bootstrap"
	"github.com/velaro/ordersync/internal/infrastructure/config"
)

var rootCmd = &cobra.Command{
	Use:           "syncctl",
	Short:         "Run order sync maintenance jobs",
	Long:          "syncctl runs the outbox sweep and the queue reap once, for cron, and resyncs single orders.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// withContainer loads the configuration, builds the container, runs fn and
// shuts the container down
func withContainer(ctx context.Context, fn func(ctx context.Context, app *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Version: "syncctl"})
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Shutdown(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package main provides the outboxctl operator tool for inspecting and
// recovering the notification outbox.
//
// Usage:
//
//	outboxctl stats
//	outboxctl retry-failed
//	outboxctl process --batch-size 10
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/saraivavision/clinic-gateway/pkg/core/config"
	"github.com/saraivavision/clinic-gateway/pkg/core/health"
	"github.com/saraivavision/clinic-gateway/pkg/core/logger"
	"github.com/saraivavision/clinic-gateway/pkg/mongo"
	"github.com/saraivavision/clinic-gateway/pkg/outbox"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "outboxctl",
		Short:   "Inspect and recover the notification outbox",
		Version: version,
	}

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRetryFailedCmd())
	rootCmd.AddCommand(newProcessCmd())

	return rootCmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print delivery statistics for the trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(func(ctx context.Context, svc *outbox.Service) error {
				stats, err := svc.GetStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}
}

func newRetryFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-queue failed messages that still have retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(func(ctx context.Context, svc *outbox.Service) error {
				count, err := svc.RetryFailed(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("requeued %d messages\n", count)
				return nil
			})
		},
	}
}

func newProcessCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one delivery sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(func(ctx context.Context, svc *outbox.Service) error {
				result, err := svc.Process(ctx, batchSize)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "messages per sweep (0 uses the configured default)")
	return cmd
}

// runWithService boots a sweeper-less application, runs fn against the
// service and shuts down.
func runWithService(fn func(context.Context, *outbox.Service) error) error {
	var svc *outbox.Service
	app := fx.New(
		config.NewConfigModule(),
		logger.NewLoggerModule(),
		health.NewReadinessModule(),
		mongo.NewMongoModule(),
		outbox.NewServiceModule(),
		fx.Provide(
			outbox.AsSender(newEmailSender),
			outbox.AsSender(newSMSSender),
			outbox.NewNopTracker,
		),
		fx.Populate(&svc),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx) //nolint:errcheck
	}()

	return fn(context.Background(), svc)
}

func newEmailSender(log *zap.Logger) outbox.Sender {
	return outbox.NewLogSender("email", log)
}

func newSMSSender(log *zap.Logger) outbox.Sender {
	return outbox.NewLogSender("sms", log)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

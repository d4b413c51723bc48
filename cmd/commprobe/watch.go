package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/yike5460/commprobe/internal/config"
	"github.com/yike5460/commprobe/internal/log"
	"github.com/yike5460/commprobe/internal/model"
)

// NewWatchCmd creates the watch command.
// This command runs incremental crawls on a cron schedule until interrupted.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run incremental crawls on a schedule",
		Long: `Watch runs incremental crawls on a cron schedule, printing only new or
changed content after each run. The first crawl runs immediately; later
runs follow the schedule. Watch keeps running until interrupted.

Incremental mode is always on in watch, so the on-disk database is
required (--no-db is rejected).

Examples:
  # Crawl every 6 hours (the default schedule)
  commprobe watch

  # Crawl every 30 minutes under a dedicated record namespace
  commprobe watch --schedule "*/30 * * * *" --run-key lawfirm-watch

  # Standard cron shortcuts work too
  commprobe watch --schedule @hourly`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	addCrawlFlags(cmd)

	cmd.Flags().String("schedule", config.DefaultWatchSchedule,
		"Cron schedule for recurring crawls")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	// Watch is change detection: every scheduled run is incremental.
	cfg.Incremental = true

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	schedule, err := cmd.Flags().GetString("schedule")
	if err != nil {
		return err
	}

	verbose := getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping watch...")
		cancel()
	}()

	runOnce := func() {
		batch, run, err := runCrawl(ctx, cfg, logger)
		if err != nil {
			// A failed run leaves the stored record untouched, so the
			// next tick retries from the same baseline.
			logger.Error("scheduled crawl failed", "error", err)
			return
		}
		if err := outputBatch(cmd.OutOrStdout(), cfg, false, batch); err != nil {
			logger.Error("failed to write output", "error", err)
			return
		}
		if run.CurrentStatus() == model.StatusPartial {
			logger.Warn("run deadline reached, accumulated results were kept",
				"run_id", run.ID)
		}
	}

	// Overlapping runs would race on the stored record; skip the tick
	// instead and let the next one pick up the backlog.
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := scheduler.AddFunc(schedule, runOnce); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	logger.Info("watch started",
		"schedule", schedule,
		"sources", cfg.Sources,
		"run_key", cfg.RunKey,
	)

	// First run fires immediately so the watch is useful before the first
	// scheduled tick.
	runOnce()

	scheduler.Start()
	<-ctx.Done()

	// Wait for an in-flight run before returning.
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	logger.Info("watch stopped")
	return nil
}

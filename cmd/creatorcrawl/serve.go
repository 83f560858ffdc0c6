package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/creatorcrawl/internal/config"
	"github.com/nao1215/creatorcrawl/internal/pipeline"
	"github.com/nao1215/creatorcrawl/internal/scheduler"
	"github.com/nao1215/creatorcrawl/internal/server"
	"github.com/spf13/cobra"
)

// schedulerStopTimeout bounds the wait for a scheduled run on shutdown.
const schedulerStopTimeout = time.Minute

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run the crawl on a schedule",
		Long: `Start the long-running service.

GET /authors runs a harvest and answers once it has finished. GET /healthz
reports whether a run is in progress and how the last one ended. Unless
--no-schedule is given, a harvest is also started on the cron schedule
(default "10 12 * * *", every day at 12:10).

Only one harvest runs at a time: a trigger that arrives during a run is
answered with 409 Conflict and a scheduled tick is skipped.`,
		Example: `  # Listen on :3000 and crawl daily at 12:10
  creatorcrawl serve

  # Listen elsewhere, crawl every six hours
  creatorcrawl serve --listen 127.0.0.1:8080 --schedule "0 */6 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, os.Getenv)
			if err != nil {
				return err
			}
			noSchedule, err := cmd.Flags().GetBool("no-schedule")
			if err != nil {
				return err
			}
			return runServe(cmd, cfg, noSchedule)
		},
	}

	addFetchFlags(cmd)
	cmd.Flags().String("listen", config.DefaultListenAddress, "HTTP listen address")
	cmd.Flags().String("schedule", config.DefaultSchedule, "Cron expression of scheduled runs")
	cmd.Flags().Bool("no-schedule", false, "Only run on HTTP triggers")

	return cmd
}

// runServe serves until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, cfg *config.Config, noSchedule bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("failed to close resources", "error", cerr)
		}
	}()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}

	schedule := cfg.Schedule
	if noSchedule {
		schedule = ""
	}
	return serve(ctx, a.runner, ln, schedule, logger)
}

// serve registers the scheduled job when schedule is set and serves the
// API on ln until ctx is cancelled.
func serve(ctx context.Context, runner *pipeline.Runner, ln net.Listener, schedule string, logger *slog.Logger) error {
	sched := scheduler.New(scheduler.WithLogger(logger))
	if schedule != "" {
		id, err := sched.Add(schedule, scheduledRun(runner, logger))
		if err != nil {
			_ = ln.Close()
			return err
		}
		sched.Start()
		logger.Info("scheduled harvests enabled", "schedule", schedule, "next", sched.Next(id))
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warn("scheduled harvest did not stop in time", "error", err)
		}
	}()

	return server.New(runner, server.WithLogger(logger)).Serve(ctx, ln)
}

// scheduledRun is the cron job: one harvest, logged instead of returned.
func scheduledRun(runner *pipeline.Runner, logger *slog.Logger) scheduler.Job {
	return func(ctx context.Context) {
		h, err := runner.Run(ctx)
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			logger.Info("skipping scheduled harvest: a run is already in progress")
		case err != nil:
			logger.Error("scheduled harvest failed", "error", err)
		default:
			logger.Info("scheduled harvest complete", "run", h.ID, "creators", len(h.Catalog))
		}
	}
}

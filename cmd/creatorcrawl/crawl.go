package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/creatorcrawl/internal/config"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl subcommand.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one harvest and exit",
		Long: `Run one harvest: discover the categories, crawl every category page by
page, merge the creators and hand the catalog to the sinks.

The command exits with a non-zero status when the crawl or any sink fails.`,
		Example: `  # Crawl and print a text report
  creatorcrawl crawl --no-db

  # Write to InfluxDB and keep a Markdown report
  INFLUX_TOKEN=secret creatorcrawl crawl --influx-url http://localhost:8086 \
    --influx-org acme --influx-bucket creators -m -o report.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, os.Getenv)
			if err != nil {
				return err
			}
			return runCrawl(cmd, cfg)
		},
	}

	addFetchFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCrawl runs a single harvest with cfg.
func runCrawl(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("failed to close resources", "error", cerr)
		}
	}()

	harvest, err := a.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	logger.Info("harvest complete",
		"run", harvest.ID,
		"creators", len(harvest.Catalog),
		"duration", harvest.Duration().Round(time.Millisecond),
	)
	return nil
}

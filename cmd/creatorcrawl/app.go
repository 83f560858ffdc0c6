package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/creatorcrawl/internal/config"
	"github.com/nao1215/creatorcrawl/internal/crawler"
	"github.com/nao1215/creatorcrawl/internal/database"
	applog "github.com/nao1215/creatorcrawl/internal/log"
	"github.com/nao1215/creatorcrawl/internal/pipeline"
	"github.com/nao1215/creatorcrawl/internal/report"
	"github.com/nao1215/creatorcrawl/internal/sink"
	"github.com/nao1215/creatorcrawl/internal/transport"
	"github.com/spf13/cobra"
)

// app holds the components of one process: the runner and whatever must
// be closed when the command returns.
type app struct {
	runner  *pipeline.Runner
	closers []func() error
}

// Close releases the database and report file.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newLogger builds the process logger and installs it as the default.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := applog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)
	return logger
}

// newApp wires fetcher, crawler, sinks and runner from cfg. reportOut is
// the default report destination; nil disables the report sink.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reportOut io.Writer) (*app, error) {
	a := &app{}

	orchestrator, err := newOrchestrator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var sinks []sink.Sink
	if cfg.Influx.Enabled() {
		sinks = append(sinks, sink.NewInfluxSink(
			cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket,
			sink.WithMeasurement(cfg.Influx.Measurement),
			sink.WithSource(cfg.Influx.Source),
			sink.WithBatchSize(cfg.Influx.BatchSize),
			sink.WithDefaultTags(cfg.Influx.DefaultTags),
			sink.WithInfluxLogger(logger),
		))
	} else {
		logger.Warn("InfluxDB sink disabled: no URL configured")
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		sinks = append(sinks, sink.NewSnapshotSink(db, logger))
		logger.Debug("snapshot database opened", "path", db.Path())
	}

	if reportOut != nil {
		out, closeOut, err := openReportOutput(cfg.ReportFile, reportOut)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeOut)
		writer := report.NewWriter(out, cfg.JSONReport, cfg.MarkdownReport)
		if jw, ok := writer.(*report.JSONWriter); ok {
			report.WithVersion(getVersion())(jw)
		}
		sinks = append(sinks, sink.NewReportSink(writer))
	}

	a.runner = pipeline.NewRunner(func() *pipeline.Pipeline {
		return pipeline.DefaultPipeline(orchestrator, sinks, logger)
	}, pipeline.WithRunnerLogger(logger))

	return a, nil
}

// newOrchestrator builds the crawl engine. When a proxy is configured it
// is checked first so a dead proxy fails the command instead of every
// request.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*crawler.Orchestrator, error) {
	policy := crawler.DefaultRetryPolicy()
	policy.TransientInterval = cfg.TransientBackoff
	policy.RateLimitInterval = cfg.RateLimitBackoff
	policy.MaxAttempts = cfg.MaxAttempts

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithRequestTimeout(cfg.RequestTimeout),
		crawler.WithRetryPolicy(policy),
		crawler.WithRequestsPerSecond(cfg.RequestsPerSecond),
		crawler.WithFetcherLogger(logger),
	}

	if cfg.ProxyAddress != "" {
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Err())
		}
		rt, err := transport.NewSOCKS5Transport(cfg.ProxyAddress)
		if err != nil {
			return nil, err
		}
		fetcherOpts = append(fetcherOpts, crawler.WithTransport(rt))
		logger.Info("routing requests through SOCKS5 proxy", "proxy", cfg.ProxyAddress)
	}

	fetcher := crawler.NewFetcher(cfg.BaseURL, fetcherOpts...)
	extractor := crawler.NewExtractor(crawler.WithBaseURL(cfg.BaseURL))

	discovery := crawler.NewDiscovery(fetcher, cfg.BaseURL, cfg.DiscoveryPath,
		crawler.WithDiscoveryLogger(logger),
		crawler.WithDiscoveryExtractor(extractor),
	)
	categories := crawler.NewCategoryCrawler(fetcher,
		crawler.WithPageDelay(cfg.PageDelay),
		crawler.WithCategoryLogger(logger),
		crawler.WithCategoryExtractor(extractor),
	)

	return crawler.NewOrchestrator(discovery, categories,
		crawler.WithMaxConcurrentCategories(cfg.MaxConcurrentCategories),
		crawler.WithOrchestratorLogger(logger),
	), nil
}

// openReportOutput returns the report destination: path when set,
// otherwise fallback.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

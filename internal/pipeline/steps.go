package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/creatorcrawl/internal/crawler"
	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/creatorcrawl/internal/sink"
)

// CrawlRunner produces a merged crawl result. *crawler.Orchestrator
// implements it.
type CrawlRunner interface {
	Run(ctx context.Context) (*crawler.Result, error)
}

// CrawlStep runs the orchestrator and copies its result into the harvest.
type CrawlStep struct {
	runner CrawlRunner
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step around runner.
func NewCrawlStep(runner CrawlRunner, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		runner: runner,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl. A failed crawl leaves the catalog empty.
func (s *CrawlStep) Do(ctx context.Context, h *model.Harvest) error {
	res, err := s.runner.Run(ctx)
	// Sinks render the harvest before Execute returns.
	h.FinishedAt = time.Now()
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	h.Categories = res.Categories
	h.CategoryCounts = res.CategoryCounts
	h.Extracted = res.Extracted
	h.Catalog = res.Catalog

	stats := h.Catalog.Stats()
	s.logger.Info("crawl finished",
		"run", h.ID,
		"categories", len(h.Categories),
		"extracted", h.Extracted,
		"creators", stats.Total,
		"recommended", stats.Recommended,
		"unknown_metrics", stats.UnknownMetrics,
	)
	return nil
}

// SinkStep hands the harvest to every sink concurrently and waits for all
// of them. One failing sink does not stop the others.
type SinkStep struct {
	sinks  []sink.Sink
	logger *slog.Logger
}

// SinkStepOption configures a SinkStep.
type SinkStepOption func(*SinkStep)

// WithSinkLogger sets a custom logger for the sink step.
func WithSinkLogger(logger *slog.Logger) SinkStepOption {
	return func(s *SinkStep) {
		s.logger = logger
	}
}

// NewSinkStep creates a step writing to sinks.
func NewSinkStep(sinks []sink.Sink, opts ...SinkStepOption) *SinkStep {
	s := &SinkStep{
		sinks:  sinks,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SinkStep) Name() string {
	return "sinks"
}

// Do starts every sink and joins their errors.
func (s *SinkStep) Do(ctx context.Context, h *model.Harvest) error {
	tasks := make([]*sink.Task, len(s.sinks))
	for i, sk := range s.sinks {
		tasks[i] = sink.Go(ctx, sk, h)
	}

	var errs []error
	for _, task := range tasks {
		if err := task.Wait(); err != nil {
			s.logger.Error("sink failed",
				"sink", task.Name(),
				"run", h.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("sink %s: %w", task.Name(), err))
			continue
		}
		s.logger.Debug("sink done", "sink", task.Name(), "run", h.ID)
	}

	return errors.Join(errs...)
}

// DefaultPipeline builds the crawl-then-sinks pipeline. The sink step is
// left out when sinks is empty.
func DefaultPipeline(runner CrawlRunner, sinks []sink.Sink, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddStep(NewCrawlStep(runner, WithCrawlLogger(logger)))
	if len(sinks) > 0 {
		p.AddStep(NewSinkStep(sinks, WithSinkLogger(logger)))
	}
	return p
}

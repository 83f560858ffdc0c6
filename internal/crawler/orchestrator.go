package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// ErrDiscoveryFailed wraps the error that prevented category discovery.
var ErrDiscoveryFailed = errors.New("category discovery failed")

// CategoryLister returns the categories to crawl. Discovery implements it.
type CategoryLister interface {
	Discover(ctx context.Context) ([]string, error)
}

// CategoryWalker crawls one category. CategoryCrawler implements it.
type CategoryWalker interface {
	Crawl(ctx context.Context, category string) ([]model.Record, error)
}

// Result is the outcome of one orchestrated crawl.
type Result struct {
	// Categories are the discovered categories in discovery order.
	Categories []string
	// CategoryCounts is the number of records each category produced.
	CategoryCounts map[string]int
	// Extracted is the number of records before deduplication.
	Extracted int
	// Catalog is the deduplicated record set.
	Catalog model.Catalog
}

// Orchestrator discovers categories, crawls them concurrently and merges
// the results.
type Orchestrator struct {
	lister        CategoryLister
	walker        CategoryWalker
	maxConcurrent int
	logger        *slog.Logger
	tracer        trace.Tracer
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrentCategories caps how many categories are crawled at once.
// Zero means no cap.
func WithMaxConcurrentCategories(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxConcurrent = n
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(lister CategoryLister, walker CategoryWalker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		lister: lister,
		walker: walker,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs a full crawl. It fails when discovery fails or ctx is
// cancelled. A category that fails for another reason keeps the records it
// gathered before failing and does not fail the run.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "crawl")
	defer span.End()

	categories, err := o.lister.Discover(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "discovery failed")
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	if len(categories) == 0 {
		o.logger.Warn("no categories discovered")
	}

	// Each goroutine writes only its own slot.
	slots := make([][]model.Record, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	if o.maxConcurrent > 0 {
		g.SetLimit(o.maxConcurrent)
	}
	for i, category := range categories {
		g.Go(func() error {
			records, err := o.walker.Crawl(gctx, category)
			slots[i] = records
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return err
			}
			o.logger.Warn("category crawl failed, keeping partial records",
				"category", category,
				"records", len(records),
				"error", err,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &Result{
		Categories:     categories,
		CategoryCounts: make(map[string]int, len(categories)),
	}
	flat := make([]model.Record, 0)
	for i, category := range categories {
		result.CategoryCounts[category] += len(slots[i])
		flat = append(flat, slots[i]...)
	}
	result.Extracted = len(flat)
	result.Catalog = Merge(flat)

	span.SetAttributes(
		attribute.Int("crawler.categories", len(categories)),
		attribute.Int("crawler.extracted", result.Extracted),
		attribute.Int("crawler.unique", len(result.Catalog)),
	)
	o.logger.Info("crawl finished",
		"categories", len(categories),
		"extracted", result.Extracted,
		"unique", len(result.Catalog),
	)
	return result, nil
}

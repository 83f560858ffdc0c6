package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// progressInterval is how many pages pass between progress log lines.
const progressInterval = 10

// CategoryCrawler walks the pages of one category until a page is missing.
type CategoryCrawler struct {
	source    PageSource
	extractor *Extractor
	pageDelay time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
	sleep     func(context.Context, time.Duration) error
}

// CategoryOption configures a CategoryCrawler.
type CategoryOption func(*CategoryCrawler)

// WithPageDelay sets the pause between two pages.
func WithPageDelay(d time.Duration) CategoryOption {
	return func(c *CategoryCrawler) {
		c.pageDelay = d
	}
}

// WithCategoryLogger sets the logger.
func WithCategoryLogger(l *slog.Logger) CategoryOption {
	return func(c *CategoryCrawler) {
		c.logger = l
	}
}

// WithCategoryExtractor replaces the default extractor.
func WithCategoryExtractor(e *Extractor) CategoryOption {
	return func(c *CategoryCrawler) {
		c.extractor = e
	}
}

// NewCategoryCrawler creates a CategoryCrawler reading pages from source.
func NewCategoryCrawler(source PageSource, opts ...CategoryOption) *CategoryCrawler {
	c := &CategoryCrawler{
		source:    source,
		extractor: NewExtractor(),
		pageDelay: 500 * time.Millisecond,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches page 1, 2, ... of category until one is not found and
// returns the records in page order. Featured records are read from page 1
// only and precede the general records of that page.
//
// A fetch error other than ErrNotFound stops the walk; the records gathered
// so far are returned together with the error.
func (c *CategoryCrawler) Crawl(ctx context.Context, category string) ([]model.Record, error) {
	ctx, span := c.tracer.Start(ctx, "crawl_category", trace.WithAttributes(attribute.String("crawler.category", category)))
	defer span.End()

	records := make([]model.Record, 0)
	for page := 1; ; page++ {
		doc, err := c.source.Fetch(ctx, PagePath(category, page))
		if errors.Is(err, ErrNotFound) {
			c.finished(category, page, len(records))
			span.SetAttributes(attribute.Int("crawler.pages", page-1))
			return records, nil
		}
		if err != nil {
			span.RecordError(err)
			return records, fmt.Errorf("category %s page %d: %w", category, page, err)
		}

		pageRecords, ok := c.extractPage(doc, page)
		if !ok {
			c.logger.Debug("page has no listing section", "category", category, "page", page)
			c.finished(category, page, len(records))
			span.SetAttributes(attribute.Int("crawler.pages", page-1))
			return records, nil
		}
		records = append(records, pageRecords...)

		if page%progressInterval == 0 {
			c.logger.Info("category progress", "category", category, "page", page, "records", len(records))
		}

		if err := c.sleep(ctx, c.pageDelay); err != nil {
			span.RecordError(err)
			return records, err
		}
	}
}

// extractPage reads the sections of one page. ok is false when the page
// lacks the "all entries" section.
func (c *CategoryCrawler) extractPage(doc *goquery.Document, page int) ([]model.Record, bool) {
	sel := c.extractor.Selectors()

	general, ok := c.extractor.ExtractSection(doc.Selection, sel.AllMarker, false)
	if !ok {
		return nil, false
	}
	if page != 1 {
		return general, true
	}

	featured, _ := c.extractor.ExtractSection(doc.Selection, sel.RecommendedMarker, true)
	return append(featured, general...), true
}

func (c *CategoryCrawler) finished(category string, page, records int) {
	c.logger.Info("category finished", "category", category, "page", page, "records", records)
}

// PagePath returns the listing path of page n of category.
func PagePath(category string, n int) string {
	return "/" + category + "?page=" + strconv.Itoa(n)
}

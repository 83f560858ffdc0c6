package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Discovery reads the category list from the tag bar of one listing page.
type Discovery struct {
	source    PageSource
	extractor *Extractor
	path      string
	prefix    string
	logger    *slog.Logger
}

// DiscoveryOption configures a Discovery.
type DiscoveryOption func(*Discovery)

// WithDiscoveryLogger sets the logger.
func WithDiscoveryLogger(l *slog.Logger) DiscoveryOption {
	return func(d *Discovery) {
		d.logger = l
	}
}

// WithDiscoveryExtractor sets the extractor whose selectors locate the tag bar.
func WithDiscoveryExtractor(e *Extractor) DiscoveryOption {
	return func(d *Discovery) {
		d.extractor = e
	}
}

// NewDiscovery creates a Discovery fetching path from source. baseURL is the
// prefix stripped from absolute category links.
func NewDiscovery(source PageSource, baseURL, path string, opts ...DiscoveryOption) *Discovery {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	d := &Discovery{
		source:    source,
		extractor: NewExtractor(),
		path:      path,
		prefix:    baseURL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the categories in tag bar order without duplicates.
// A failed fetch, ErrNotFound included, is returned as is.
func (d *Discovery) Discover(ctx context.Context) ([]string, error) {
	doc, err := d.source.Fetch(ctx, d.path)
	if err != nil {
		return nil, fmt.Errorf("discovery page %s: %w", d.path, err)
	}

	sel := d.extractor.Selectors()
	count := doc.Find(sel.CategoryLinks).Length()
	items := siblingRun(doc.Find(sel.CategoryItems).First(), count)

	categories := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		link := item
		if goquery.NodeName(item) != "a" {
			link = item.Find("a").First()
		}
		href, ok := link.Attr("href")
		if !ok {
			continue
		}
		category := d.categoryFromHref(href)
		if category == "" || seen[category] {
			continue
		}
		seen[category] = true
		categories = append(categories, category)
	}

	d.logger.Info("categories discovered", "count", len(categories))
	return categories, nil
}

// categoryFromHref strips the base URL from href. Relative links lose their
// leading slash; links to other hosts yield "".
func (d *Discovery) categoryFromHref(href string) string {
	href = strings.TrimSpace(href)
	category := strings.TrimPrefix(href, d.prefix)
	category = strings.TrimPrefix(category, "/")
	if strings.Contains(category, "://") || strings.HasPrefix(category, "/") {
		return ""
	}
	return strings.TrimSuffix(category, "/")
}

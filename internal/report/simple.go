package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing to list.
	showEmpty bool

	// verbose lists every creator of the catalog.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists the whole catalog after the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithTopN sets how many creators the top section lists.
func WithTopN(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.topN = n
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(h *model.Harvest) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "CREATORCRAWL RUN REPORT")
	w.writeHeader(&sb, h)
	w.writeCategories(&sb, h)
	w.writeTop(&sb, h)
	if w.verbose {
		w.writeCatalog(&sb, h)
	}

	return io.WriteString(w.output, sb.String())
}

// WriteComparison outputs what changed between two runs.
func (w *SimpleWriter) WriteComparison(c *Comparison) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "CREATORCRAWL CATALOG CHANGES")
	fmt.Fprintf(&sb, "Older run:  %s (%s)\n", c.OlderID, c.OlderAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Newer run:  %s (%s)\n", c.NewerID, c.NewerAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Added:      %d\n", len(c.Diff.Added))
	fmt.Fprintf(&sb, "Removed:    %d\n", len(c.Diff.Removed))
	fmt.Fprintf(&sb, "Changed:    %d\n\n", len(c.Diff.Changed))

	if c.Diff.Empty() {
		sb.WriteString("  No changes\n")
		return io.WriteString(w.output, sb.String())
	}

	if len(c.Diff.Added) > 0 || w.showEmpty {
		w.writeSection(&sb, "NEW CREATORS")
		for _, r := range c.Diff.Added {
			fmt.Fprintf(&sb, "  [+] %s  %s\n", r.Name, r.URL)
		}
		sb.WriteString("\n")
	}
	if len(c.Diff.Removed) > 0 || w.showEmpty {
		w.writeSection(&sb, "REMOVED CREATORS")
		for _, r := range c.Diff.Removed {
			fmt.Fprintf(&sb, "  [-] %s  %s\n", r.Name, r.URL)
		}
		sb.WriteString("\n")
	}
	if movers := c.Diff.TopMovers(w.topN); len(movers) > 0 || w.showEmpty {
		w.writeSection(&sb, "MONTHLY REVENUE CHANGES")
		for _, m := range movers {
			fmt.Fprintf(&sb, "  [~] %-40s %10s -> %-10s (%s)\n",
				truncateString(m.After.Name, 40),
				formatAmount(m.Before.MonthlyRevenue),
				formatAmount(m.After.MonthlyRevenue),
				formatDelta(m.MonthlyDelta()))
		}
		sb.WriteString("\n")
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", max(0, (70-len(title))/2)))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes run identity and catalog statistics.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, h *model.Harvest) {
	stats := h.Catalog.Stats()

	fmt.Fprintf(sb, "Run:             %s\n", h.ID)
	fmt.Fprintf(sb, "Started:         %s\n", h.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:        %s\n", h.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Categories:      %d\n", len(h.Categories))
	fmt.Fprintf(sb, "Extracted:       %d\n", h.Extracted)
	fmt.Fprintf(sb, "Creators:        %d\n", stats.Total)
	fmt.Fprintf(sb, "Recommended:     %d\n", stats.Recommended)
	fmt.Fprintf(sb, "Unknown metrics: %d\n", stats.UnknownMetrics)
	fmt.Fprintf(sb, "Status:          %s\n", statusText(h))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCategories(sb *strings.Builder, h *model.Harvest) {
	rows := categoryCounts(h)
	if len(rows) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "CATEGORIES")
	if len(rows) == 0 {
		sb.WriteString("  No categories crawled\n")
	}
	for _, row := range rows {
		fmt.Fprintf(sb, "  %-50s %6d\n", truncateString(row.Category, 50), row.Count)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTop(sb *strings.Builder, h *model.Harvest) {
	top := h.Catalog.TopByMonthlyRevenue(w.topN)
	if len(top) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "TOP CREATORS BY MONTHLY REVENUE")
	if len(top) == 0 {
		sb.WriteString("  No creators with a known monthly revenue\n")
	}
	for i, r := range top {
		fmt.Fprintf(sb, "  %2d. %-40s %12s zł/mies. %6s patrons\n",
			i+1,
			truncateString(r.Name, 40),
			formatAmount(r.MonthlyRevenue),
			formatAmount(r.NumberOfPatrons))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCatalog(sb *strings.Builder, h *model.Harvest) {
	w.writeSection(sb, "CATALOG")
	for _, r := range h.Catalog.Sorted() {
		marker := " "
		if r.IsRecommended {
			marker = "*"
		}
		fmt.Fprintf(sb, "  %s %s\n", marker, r.URL)
		fmt.Fprintf(sb, "      name=%q monthly=%s total=%s patrons=%s tags=%s\n",
			r.Name,
			formatAmount(r.MonthlyRevenue),
			formatAmount(r.TotalRevenue),
			formatAmount(r.NumberOfPatrons),
			r.TagString())
	}
	sb.WriteString("\n")
}

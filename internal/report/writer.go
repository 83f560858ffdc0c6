package report

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// DefaultTopN is how many creators the "top" sections list.
const DefaultTopN = 10

// Writer renders crawl results.
type Writer interface {
	// Write outputs the summary of one run.
	// Returns the number of bytes written and any error encountered.
	Write(h *model.Harvest) (int, error)

	// WriteComparison outputs the difference between two stored runs.
	WriteComparison(c *Comparison) (int, error)
}

// Comparison is the input of WriteComparison.
type Comparison struct {
	OlderID string            `json:"older_id"`
	OlderAt time.Time         `json:"older_at"`
	NewerID string            `json:"newer_id"`
	NewerAt time.Time         `json:"newer_at"`
	Diff    model.CatalogDiff `json:"diff"`
}

// NewWriter picks the writer for the requested format.
// Plain text is used when neither flag is set.
func NewWriter(output io.Writer, jsonFormat, markdownFormat bool) Writer {
	switch {
	case jsonFormat:
		return NewJSONWriter(output, WithPrettyPrint())
	case markdownFormat:
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output)
	}
}

// MultiWriter writes to multiple Writers in order.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run summary to every Writer.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(h *model.Harvest) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(h)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteComparison outputs the comparison to every Writer.
func (m *MultiWriter) WriteComparison(c *Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteComparison(c)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
	topN   int
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output, topN: DefaultTopN}
}

// categoryCount is one row of the per-category table.
type categoryCount struct {
	Category string
	Count    int
}

// categoryCounts returns the counts in discovery order. Categories that
// were counted but not listed are appended at the end.
func categoryCounts(h *model.Harvest) []categoryCount {
	rows := make([]categoryCount, 0, len(h.CategoryCounts))
	seen := make(map[string]bool, len(h.Categories))
	for _, c := range h.Categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		rows = append(rows, categoryCount{Category: c, Count: h.CategoryCounts[c]})
	}
	for _, c := range slices.Sorted(maps.Keys(h.CategoryCounts)) {
		if !seen[c] {
			rows = append(rows, categoryCount{Category: c, Count: h.CategoryCounts[c]})
		}
	}
	return rows
}

// formatAmount renders a metric, showing Unknown as "?".
func formatAmount(v float64) string {
	if v == model.Unknown {
		return "?"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatDelta renders a signed revenue change.
func formatDelta(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v > 0 {
		return "+" + s
	}
	return s
}

// statusText summarizes how the run ended.
func statusText(h *model.Harvest) string {
	if !h.Failed() {
		return "Complete"
	}
	msg := h.ErrorMessage
	if msg == "" && h.Error != nil {
		msg = h.Error.Error()
	}
	return "Failed - " + msg
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

const timeLayout = "2006-01-02 15:04:05 MST"

package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxChartSlices bounds the category pie chart; smaller categories are
// folded into "other".
const maxChartSlices = 8

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary.
func (w *MarkdownWriter) Write(h *model.Harvest) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, h)
	w.writeAlert(md, h)
	w.writeCategories(md, h)
	w.writeTop(md, h)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteComparison outputs what changed between two runs.
func (w *MarkdownWriter) WriteComparison(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Catalog Changes")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Older Run", "`" + c.OlderID + "` " + c.OlderAt.Format(timeLayout)},
			{"Newer Run", "`" + c.NewerID + "` " + c.NewerAt.Format(timeLayout)},
			{"Added", strconv.Itoa(len(c.Diff.Added))},
			{"Removed", strconv.Itoa(len(c.Diff.Removed))},
			{"Changed", strconv.Itoa(len(c.Diff.Changed))},
		},
	})
	md.PlainText("")

	if c.Diff.Empty() {
		md.Note("The two runs produced identical catalogs.")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	if len(c.Diff.Added) > 0 {
		md.H2("New Creators")
		md.PlainText("")
		w.writeRecordTable(md, c.Diff.Added)
	}
	if len(c.Diff.Removed) > 0 {
		md.H2("Removed Creators")
		md.PlainText("")
		w.writeRecordTable(md, c.Diff.Removed)
	}
	if movers := c.Diff.TopMovers(w.topN); len(movers) > 0 {
		md.H2("Monthly Revenue Changes")
		md.PlainText("")
		rows := make([][]string, len(movers))
		for i, m := range movers {
			rows[i] = []string{
				"[" + truncateString(m.After.Name, 40) + "](" + m.After.URL + ")",
				formatAmount(m.Before.MonthlyRevenue),
				formatAmount(m.After.MonthlyRevenue),
				formatDelta(m.MonthlyDelta()),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Creator", "Before", "After", "Delta"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, h *model.Harvest) {
	stats := h.Catalog.Stats()

	md.H1("Creatorcrawl Run Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + h.ID + "`"},
			{"Started", h.StartedAt.Format(timeLayout)},
			{"Duration", h.Duration().String()},
			{"Categories", strconv.Itoa(len(h.Categories))},
			{"Extracted", strconv.Itoa(h.Extracted)},
			{"Creators", strconv.Itoa(stats.Total)},
			{"Recommended", strconv.Itoa(stats.Recommended)},
			{"Unknown Metrics", strconv.Itoa(stats.UnknownMetrics)},
			{"Status", statusText(h)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, h *model.Harvest) {
	stats := h.Catalog.Stats()
	switch {
	case h.Failed():
		md.Cautionf("The run failed and no catalog was published: %s", statusText(h))
	case stats.Total == 0:
		md.Warningf("The run finished without a single creator across %d categories.", len(h.Categories))
	case stats.UnknownMetrics > 0:
		md.Importantf("%d creator(s) have at least one number that could not be parsed.", stats.UnknownMetrics)
	default:
		md.Tip("Every creator was extracted with complete metrics.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, h *model.Harvest) {
	rows := categoryCounts(h)
	md.H2("Categories")
	md.PlainText("")
	if len(rows) == 0 {
		md.PlainText("No categories crawled.")
		md.PlainText("")
		return
	}

	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = []string{"`" + row.Category + "`", strconv.Itoa(row.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Records"},
		Rows:   table,
	})
	md.PlainText("")

	w.writePieChart(md, rows)
}

// writePieChart writes a mermaid pie chart of records per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, rows []categoryCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Category"),
		piechart.WithShowData(true),
	)

	var shown, other int
	for _, row := range largestFirst(rows) {
		if row.Count <= 0 {
			continue
		}
		if shown < maxChartSlices {
			chart.LabelAndIntValue(row.Category, uint64(row.Count))
			shown++
			continue
		}
		other += row.Count
	}
	if shown == 0 {
		return
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeTop(md *markdown.Markdown, h *model.Harvest) {
	top := h.Catalog.TopByMonthlyRevenue(w.topN)
	md.H2("Top Creators by Monthly Revenue")
	md.PlainText("")
	if len(top) == 0 {
		md.PlainText("No creators with a known monthly revenue.")
		md.PlainText("")
		return
	}
	w.writeRecordTable(md, top)
}

func (w *MarkdownWriter) writeRecordTable(md *markdown.Markdown, records []model.Record) {
	rows := make([][]string, len(records))
	for i, r := range records {
		name := truncateString(r.Name, 40)
		if r.IsRecommended {
			name += " ⭐"
		}
		tags := r.TagString()
		if tags == "" {
			tags = "-"
		}
		rows[i] = []string{
			"[" + name + "](" + r.URL + ")",
			formatAmount(r.MonthlyRevenue),
			formatAmount(r.TotalRevenue),
			formatAmount(r.NumberOfPatrons),
			truncateString(tags, 40),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Creator", "Monthly", "Total", "Patrons", "Tags"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by creatorcrawl*")
}

// largestFirst returns a copy of rows ordered by count, largest first.
// Equal counts keep their discovery order.
func largestFirst(rows []categoryCount) []categoryCount {
	sorted := make([]categoryCount, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	return sorted
}

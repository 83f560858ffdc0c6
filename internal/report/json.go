package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format for other programs.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string.
	indentString string

	// version is stamped into run reports.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the program version in run reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written for one run.
type JSONReport struct {
	// Version is the creatorcrawl version that produced the report.
	Version string `json:"version,omitempty"`

	// Harvest holds the run metadata.
	Harvest *model.Harvest `json:"harvest"`

	// Stats summarizes the catalog.
	Stats model.CatalogStats `json:"stats"`

	// Records is the catalog ordered by URL.
	Records []model.Record `json:"records"`
}

// NewJSONReport builds the run document. The harvest is copied so that
// ErrorMessage can be filled from Error without touching h.
func NewJSONReport(h *model.Harvest, version string) *JSONReport {
	run := *h
	if run.ErrorMessage == "" && run.Error != nil {
		run.ErrorMessage = run.Error.Error()
	}
	return &JSONReport{
		Version: version,
		Harvest: &run,
		Stats:   h.Catalog.Stats(),
		Records: h.Catalog.Sorted(),
	}
}

// Write outputs the run report.
func (w *JSONWriter) Write(h *model.Harvest) (int, error) {
	return w.writeJSON(NewJSONReport(h, w.version))
}

// WriteComparison outputs the comparison as is.
func (w *JSONWriter) WriteComparison(c *Comparison) (int, error) {
	return w.writeJSON(c)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

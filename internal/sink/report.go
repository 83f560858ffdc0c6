package sink

import (
	"context"
	"fmt"

	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/creatorcrawl/internal/report"
)

// ReportSink renders the run with a report.Writer.
type ReportSink struct {
	writer report.Writer
}

// NewReportSink creates a ReportSink.
func NewReportSink(w report.Writer) *ReportSink {
	return &ReportSink{writer: w}
}

// Name returns "report".
func (s *ReportSink) Name() string {
	return "report"
}

// Write renders the harvest. The context is only checked before writing.
func (s *ReportSink) Write(ctx context.Context, h *model.Harvest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.writer.Write(h); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

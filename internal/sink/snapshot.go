package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// HarvestStore persists a harvest. *database.SnapshotDB implements it.
type HarvestStore interface {
	SaveHarvest(ctx context.Context, h *model.Harvest) error
}

// SnapshotSink stores runs in the local snapshot database.
type SnapshotSink struct {
	store  HarvestStore
	logger *slog.Logger
}

// NewSnapshotSink creates a SnapshotSink. A nil logger means slog.Default().
func NewSnapshotSink(store HarvestStore, logger *slog.Logger) *SnapshotSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotSink{store: store, logger: logger}
}

// Name returns "snapshot".
func (s *SnapshotSink) Name() string {
	return "snapshot"
}

// Write saves the harvest.
func (s *SnapshotSink) Write(ctx context.Context, h *model.Harvest) error {
	if err := s.store.SaveHarvest(ctx, h); err != nil {
		return fmt.Errorf("save snapshot %s: %w", h.ID, err)
	}
	s.logger.Debug("snapshot saved", "run", h.ID, "records", len(h.Catalog))
	return nil
}

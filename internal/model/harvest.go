package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Harvest carries one crawl run through the pipeline.
// The crawl step fills the categories and the catalog; the sink steps read it.
type Harvest struct {
	// ID identifies the run in logs, reports and the snapshot database.
	ID string `json:"id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last pipeline step returned.
	FinishedAt time.Time `json:"finished_at"`

	// Categories lists the discovered categories in discovery order.
	Categories []string `json:"categories"`

	// CategoryCounts is the number of records extracted per category,
	// counted before deduplication.
	CategoryCounts map[string]int `json:"category_counts"`

	// Extracted is the total number of records before deduplication.
	Extracted int `json:"extracted"`

	// Catalog is the deduplicated result of the crawl.
	Catalog Catalog `json:"-"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as text, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// CompletedSteps lists the pipeline steps that ran, in order.
	CompletedSteps []string `json:"completed_steps"`
}

// NewHarvest creates an empty Harvest stamped with the current time.
func NewHarvest() *Harvest {
	return &Harvest{
		ID:             newHarvestID(),
		StartedAt:      time.Now(),
		Categories:     make([]string, 0),
		CategoryCounts: make(map[string]int),
		Catalog:        make(Catalog),
		CompletedSteps: make([]string, 0),
	}
}

// Duration returns how long the run took. It is zero until FinishedAt is set.
func (h *Harvest) Duration() time.Duration {
	if h.FinishedAt.IsZero() {
		return 0
	}
	return h.FinishedAt.Sub(h.StartedAt)
}

// Failed reports whether the run ended with an error.
func (h *Harvest) Failed() bool {
	return h.Error != nil || h.ErrorMessage != ""
}

// newHarvestID returns a random 16-character hex identifier.
func newHarvestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return hex.EncodeToString(b[:])
}

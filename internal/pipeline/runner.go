package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// ErrRunInProgress is returned by Runner.Run while another run is active.
var ErrRunInProgress = errors.New("a crawl run is already in progress")

// Runner executes one harvest at a time.
type Runner struct {
	// pipelineFactory creates a fresh pipeline for every run, so no step
	// state leaks between runs.
	pipelineFactory func() *Pipeline

	logger *slog.Logger

	running atomic.Bool

	mu   sync.Mutex
	last *model.Harvest
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner.
func NewRunner(pipelineFactory func() *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipelineFactory: pipelineFactory,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run executes one harvest. It returns ErrRunInProgress without doing
// anything when a run is already active. The harvest is returned even when
// the pipeline fails; its Error field holds the failure.
func (r *Runner) Run(ctx context.Context) (*model.Harvest, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	h := model.NewHarvest()
	r.logger.Info("run started", "run", h.ID)

	err := r.pipelineFactory().Execute(ctx, h)

	r.mu.Lock()
	r.last = h
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("run failed",
			"run", h.ID,
			"elapsed", h.Duration(),
			"error", err,
		)
		return h, err
	}

	r.logger.Info("run completed",
		"run", h.ID,
		"elapsed", h.Duration(),
		"creators", len(h.Catalog),
	)
	return h, nil
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Last returns the most recent finished harvest, or nil.
func (r *Runner) Last() *model.Harvest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

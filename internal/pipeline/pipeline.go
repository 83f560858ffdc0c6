package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the harvest filled by the
// previous ones.
type Step interface {
	// Do executes the step. A returned error is recorded in the harvest.
	Do(ctx context.Context, h *model.Harvest) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after a failure. The default stops, so sinks never see a failed crawl.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stamps h.FinishedAt when done.
// Cancellation is checked before each step.
//
// Returns the first error encountered if continueOnError is false. With
// continueOnError the last error is returned after every step ran.
func (p *Pipeline) Execute(ctx context.Context, h *model.Harvest) error {
	defer func() {
		h.FinishedAt = time.Now()
	}()

	var lastErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"run", h.ID,
				"reason", err,
			)
			recordError(h, err)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"run", h.ID,
		)

		if err := step.Do(ctx, h); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run", h.ID,
				"error", err,
			)
			recordError(h, err)
			if !p.continueOnError {
				return err
			}
			lastErr = err
			continue
		}

		h.CompletedSteps = append(h.CompletedSteps, step.Name())
	}

	return lastErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

func recordError(h *model.Harvest, err error) {
	h.Error = err
	h.ErrorMessage = err.Error()
}

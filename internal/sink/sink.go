package sink

import (
	"context"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// Sink receives the result of a crawl run.
type Sink interface {
	// Write delivers the harvest. It must not modify h.
	Write(ctx context.Context, h *model.Harvest) error

	// Name identifies the sink in logs and pipeline step names.
	Name() string
}

// Task is a sink write running in the background.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Go starts s.Write in a new goroutine.
func Go(ctx context.Context, s Sink, h *model.Harvest) *Task {
	t := &Task{
		name: s.Name(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		t.err = s.Write(ctx, h)
	}()
	return t
}

// Name returns the name of the sink the task writes to.
func (t *Task) Name() string {
	return t.name
}

// Done is closed once the write has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the write returns and reports its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// every fires at a fixed interval below cron's one-second resolution.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerAdd(t *testing.T) {
	t.Parallel()

	t.Run("accepts the default daily expression", func(t *testing.T) {
		t.Parallel()

		s := New(WithLogger(discardLogger()), WithLocation(time.UTC))
		id, err := s.Add("10 12 * * *", func(context.Context) {})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s.Start()
		defer func() { _ = s.Stop(context.Background()) }()

		next := s.Next(id)
		if next.Hour() != 12 || next.Minute() != 10 {
			t.Errorf("expected next run at 12:10, got %v", next)
		}
	})

	t.Run("rejects a malformed expression", func(t *testing.T) {
		t.Parallel()

		s := New(WithLogger(discardLogger()))
		if _, err := s.Add("every day", func(context.Context) {}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSchedulerRunsJobs(t *testing.T) {
	t.Parallel()

	s := New(WithLogger(discardLogger()))
	var calls atomic.Int32
	s.AddSchedule(every(10*time.Millisecond), func(context.Context) {
		calls.Add(1)
	})

	s.Start()
	waitFor(t, func() bool { return calls.Load() >= 3 })

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := New(WithLogger(logger))
	release := make(chan struct{})
	var running, maxRunning, calls atomic.Int32
	s.AddSchedule(every(5*time.Millisecond), func(context.Context) {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
	})

	s.Start()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(buf.String(), "skip")
	})
	close(release)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if maxRunning.Load() != 1 {
		t.Errorf("expected at most one job at a time, got %d", maxRunning.Load())
	}
}

func TestSchedulerStopCancelsJobs(t *testing.T) {
	t.Parallel()

	s := New(WithLogger(discardLogger()))
	started := make(chan struct{})
	var once sync.Once
	var cancelled atomic.Bool
	s.AddSchedule(every(5*time.Millisecond), func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		cancelled.Store(errors.Is(ctx.Err(), context.Canceled))
	})

	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if !cancelled.Load() {
		t.Error("expected running job to observe cancellation")
	}
}

func TestCronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := cronLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}
	l.Error(errors.New("boom"), "job panicked", "entry", 3)

	out := buf.String()
	for _, want := range []string{"cron: job panicked", "error=boom", "entry=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

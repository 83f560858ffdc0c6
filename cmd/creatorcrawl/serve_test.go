package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/creatorcrawl/internal/config"
	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/creatorcrawl/internal/pipeline"
	"github.com/nao1215/creatorcrawl/internal/server"
)

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	if cmd.Use != "serve" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	listen := cmd.Flags().Lookup("listen")
	if listen == nil || listen.DefValue != config.DefaultListenAddress {
		t.Errorf("unexpected listen flag: %+v", listen)
	}
	schedule := cmd.Flags().Lookup("schedule")
	if schedule == nil || schedule.DefValue != config.DefaultSchedule {
		t.Errorf("unexpected schedule flag: %+v", schedule)
	}
	for _, flag := range []string{"no-schedule", "base-url", "influx-url", "no-db"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
	if cmd.Flags().Lookup("json") != nil {
		t.Error("serve should not take report flags")
	}
}

func TestServeTriggersHarvest(t *testing.T) {
	site := newTestSite(t)

	cfg := config.NewConfig()
	cfg.BaseURL = site.URL + "/"
	cfg.PageDelay = 0
	cfg.MaxAttempts = 1
	cfg.SaveToDB = false
	logger := slog.New(slog.DiscardHandler)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, a.runner, ln, config.DefaultSchedule, logger)
	}()

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/authors") //nolint:noctx // Test request
	if err != nil {
		t.Fatalf("GET /authors: %v", err)
	}
	var summary server.Summary
	err = json.NewDecoder(resp.Body).Decode(&summary)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", resp.StatusCode, summary)
	}
	if summary.Creators != 4 || summary.Categories != 2 || summary.Recommended != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	resp, err = http.Get(base + "/healthz") //nolint:noctx // Test request
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health server.Health
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Running || health.LastRun == nil || health.LastRun.ID != summary.ID {
		t.Errorf("unexpected health: %+v", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	runner := pipeline.NewRunner(func() *pipeline.Pipeline { return pipeline.New() })

	err = serve(t.Context(), runner, ln, "every now and then", slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatal("expected an error for a malformed schedule")
	}
}

// gateStep blocks until release is closed.
type gateStep struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gateStep) Name() string { return "gate" }

func (s *gateStep) Do(ctx context.Context, _ *model.Harvest) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failStep struct{}

func (failStep) Name() string { return "fail" }

func (failStep) Do(context.Context, *model.Harvest) error { return errors.New("site unreachable") }

func TestScheduledRun(t *testing.T) {
	t.Parallel()

	t.Run("skips while a run is in progress", func(t *testing.T) {
		t.Parallel()

		var logs lockedBuffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		gate := &gateStep{started: make(chan struct{}), release: make(chan struct{})}
		runner := pipeline.NewRunner(func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddStep(gate)
			return p
		}, pipeline.WithRunnerLogger(logger))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = runner.Run(t.Context())
		}()
		<-gate.started

		scheduledRun(runner, logger)(t.Context())
		if !strings.Contains(logs.String(), "already in progress") {
			t.Errorf("expected a skip message, got:\n%s", logs.String())
		}

		close(gate.release)
		<-done
	})

	t.Run("logs failures", func(t *testing.T) {
		t.Parallel()

		var logs lockedBuffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		runner := pipeline.NewRunner(func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddStep(failStep{})
			return p
		}, pipeline.WithRunnerLogger(logger))

		scheduledRun(runner, logger)(t.Context())
		if !strings.Contains(logs.String(), "scheduled harvest failed") {
			t.Errorf("expected a failure message, got:\n%s", logs.String())
		}
	})

	t.Run("logs success", func(t *testing.T) {
		t.Parallel()

		var logs lockedBuffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		runner := pipeline.NewRunner(func() *pipeline.Pipeline {
			return pipeline.New(pipeline.WithLogger(logger))
		}, pipeline.WithRunnerLogger(logger))

		scheduledRun(runner, logger)(t.Context())
		if !strings.Contains(logs.String(), "scheduled harvest complete") {
			t.Errorf("expected a completion message, got:\n%s", logs.String())
		}
	})
}

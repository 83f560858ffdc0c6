// Package server exposes the crawl trigger over HTTP.
//
// GET /authors runs a harvest and answers once every sink has finished.
// GET /healthz reports whether a run is active and how the last one ended.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/creatorcrawl/internal/model"
	"github.com/nao1215/creatorcrawl/internal/pipeline"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// HarvestRunner starts runs. *pipeline.Runner implements it.
type HarvestRunner interface {
	Run(ctx context.Context) (*model.Harvest, error)
	Running() bool
	Last() *model.Harvest
}

// Summary is the JSON body describing one run.
type Summary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Duration       string    `json:"duration"`
	Categories     int       `json:"categories"`
	Extracted      int       `json:"extracted"`
	Creators       int       `json:"creators"`
	Recommended    int       `json:"recommended"`
	UnknownMetrics int       `json:"unknown_metrics"`
	Error          string    `json:"error,omitempty"`
}

// NewSummary describes h.
func NewSummary(h *model.Harvest) Summary {
	stats := h.Catalog.Stats()
	s := Summary{
		ID:             h.ID,
		StartedAt:      h.StartedAt,
		FinishedAt:     h.FinishedAt,
		Duration:       h.Duration().String(),
		Categories:     len(h.Categories),
		Extracted:      h.Extracted,
		Creators:       stats.Total,
		Recommended:    stats.Recommended,
		UnknownMetrics: stats.UnknownMetrics,
		Error:          h.ErrorMessage,
	}
	if s.Error == "" && h.Error != nil {
		s.Error = h.Error.Error()
	}
	return s
}

// Health is the JSON body of GET /healthz.
type Health struct {
	Status  string   `json:"status"`
	Running bool     `json:"running"`
	LastRun *Summary `json:"last_run,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server serves the trigger endpoints.
type Server struct {
	runner  HarvestRunner
	logger  *slog.Logger
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server around runner.
func New(runner HarvestRunner, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /authors", s.handleAuthors)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.handler = otelhttp.NewHandler(mux, "creatorcrawl")

	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("api stopped")
	return nil
}

func (s *Server) handleAuthors(w http.ResponseWriter, r *http.Request) {
	h, err := s.runner.Run(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case err != nil:
		s.logger.Error("api run failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		s.writeJSON(w, http.StatusOK, NewSummary(h))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := Health{
		Status:  "ok",
		Running: s.runner.Running(),
	}
	if last := s.runner.Last(); last != nil {
		summary := NewSummary(last)
		health.LastRun = &summary
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("api response not written", "error", err)
	}
}

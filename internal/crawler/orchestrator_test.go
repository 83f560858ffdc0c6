package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/creatorcrawl/internal/model"
)

type stubLister struct {
	categories []string
	err        error
}

func (s stubLister) Discover(context.Context) ([]string, error) {
	return s.categories, s.err
}

type stubWalker struct {
	mu      sync.Mutex
	calls   []string
	records map[string][]model.Record
	errs    map[string]error

	active, peak atomic.Int32
	gate         chan struct{}
}

func (s *stubWalker) Crawl(ctx context.Context, category string) ([]model.Record, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, category)
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records[category], s.errs[category]
}

func TestOrchestrator_Run(t *testing.T) {
	t.Parallel()

	t.Run("discovery failure fails the run without crawling", func(t *testing.T) {
		t.Parallel()

		walker := &stubWalker{}
		o := NewOrchestrator(stubLister{err: ErrNotFound}, walker, WithOrchestratorLogger(discardLogger()))
		res, err := o.Run(context.Background())
		if !errors.Is(err, ErrDiscoveryFailed) || !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrDiscoveryFailed wrapping ErrNotFound, got %v", err)
		}
		if res != nil {
			t.Error("expected nil result")
		}
		if len(walker.calls) != 0 {
			t.Errorf("expected no category crawl, got %v", walker.calls)
		}
	})

	t.Run("flattens in category order and merges", func(t *testing.T) {
		t.Parallel()

		walker := &stubWalker{records: map[string][]model.Record{
			"alpha": {{URL: "u1", Name: "alpha-plain"}, {URL: "u2"}},
			"beta":  {{URL: "u1", Name: "beta-featured", IsRecommended: true}, {URL: "u3"}},
			"gamma": {{URL: "u2", Name: "gamma-plain"}},
		}}
		o := NewOrchestrator(stubLister{categories: []string{"alpha", "beta", "gamma"}}, walker, WithOrchestratorLogger(discardLogger()))

		res, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Extracted != 5 {
			t.Errorf("Extracted = %d, want 5", res.Extracted)
		}
		if len(res.Catalog) != 3 {
			t.Errorf("catalog size = %d, want 3", len(res.Catalog))
		}
		if res.Catalog["u1"].Name != "beta-featured" {
			t.Errorf("u1 = %+v", res.Catalog["u1"])
		}
		if res.Catalog["u2"].Name != "" {
			t.Errorf("u2 should keep alpha's record, got %+v", res.Catalog["u2"])
		}
		if res.CategoryCounts["alpha"] != 2 || res.CategoryCounts["gamma"] != 1 {
			t.Errorf("CategoryCounts = %v", res.CategoryCounts)
		}
	})

	t.Run("failed category keeps partial records", func(t *testing.T) {
		t.Parallel()

		walker := &stubWalker{
			records: map[string][]model.Record{"alpha": {{URL: "p1"}}, "beta": {{URL: "p2"}}},
			errs:    map[string]error{"alpha": ErrRetriesExhausted},
		}
		o := NewOrchestrator(stubLister{categories: []string{"alpha", "beta"}}, walker, WithOrchestratorLogger(discardLogger()))

		res, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Catalog) != 2 {
			t.Errorf("catalog size = %d, want 2", len(res.Catalog))
		}
	})

	t.Run("cancellation fails the run", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		walker := &stubWalker{gate: make(chan struct{})}
		o := NewOrchestrator(stubLister{categories: []string{"alpha", "beta"}}, walker, WithOrchestratorLogger(discardLogger()))

		done := make(chan error, 1)
		go func() {
			_, err := o.Run(ctx)
			done <- err
		}()
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrency cap is honoured", func(t *testing.T) {
		t.Parallel()

		categories := []string{"a", "b", "c", "d", "e", "f"}
		walker := &stubWalker{gate: make(chan struct{})}
		o := NewOrchestrator(stubLister{categories: categories}, walker,
			WithMaxConcurrentCategories(2), WithOrchestratorLogger(discardLogger()))

		go func() {
			for range categories {
				walker.gate <- struct{}{}
			}
		}()
		if _, err := o.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p := walker.peak.Load(); p > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", p)
		}
		if len(walker.calls) != len(categories) {
			t.Errorf("crawled %d categories, want %d", len(walker.calls), len(categories))
		}
	})

	t.Run("no categories is an empty success", func(t *testing.T) {
		t.Parallel()

		o := NewOrchestrator(stubLister{}, &stubWalker{}, WithOrchestratorLogger(discardLogger()))
		res, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Catalog) != 0 || res.Extracted != 0 {
			t.Errorf("expected empty result, got %+v", res)
		}
	})
}

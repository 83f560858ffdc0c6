package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastPolicy keeps retry tests quick.
func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		TransientInterval: time.Millisecond,
		RateLimitInterval: time.Millisecond,
		MaxAttempts:       maxAttempts,
		Classify:          ClassifyAttempt,
	}
}

func TestFetcher_Success(t *testing.T) {
	t.Parallel()

	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h4>Wszyscy</h4></body></html>`))
	}))
	defer server.Close()

	f := NewFetcher(server.URL+"/", WithUserAgent("creatorcrawl-test"), WithFetcherLogger(discardLogger()))
	doc, err := f.Fetch(context.Background(), "/alpha?page=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc.Find("h4").Text(); got != "Wszyscy" {
		t.Errorf("h4 text = %q", got)
	}
	if gotUA != "creatorcrawl-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotQuery != "page=2" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestFetcher_TerminalStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			f := NewFetcher(server.URL, WithRetryPolicy(fastPolicy(0)), WithFetcherLogger(discardLogger()))
			_, err := f.Fetch(context.Background(), "/missing")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if hits.Load() != 1 {
				t.Errorf("expected exactly one request, got %d", hits.Load())
			}
		})
	}
}

func TestFetcher_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`<html><body><p>ok</p></body></html>`))
	}))
	defer server.Close()

	var waits []time.Duration
	f := NewFetcher(server.URL, WithRetryPolicy(RetryPolicy{
		TransientInterval: 10 * time.Second,
		RateLimitInterval: 2 * time.Second,
	}), WithFetcherLogger(discardLogger()))
	f.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	doc, err := f.Fetch(context.Background(), "/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Find("p").Text() != "ok" {
		t.Error("unexpected document")
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
	if len(waits) != 2 || waits[0] != 2*time.Second || waits[1] != 2*time.Second {
		t.Errorf("expected two 2s waits, got %v", waits)
	}
}

func TestFetcher_TransientFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer cannot hijack")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_ = conn.Close()
	}))
	defer server.Close()

	t.Run("bounded attempts are exhausted", func(t *testing.T) {
		var waits []time.Duration
		f := NewFetcher(server.URL, WithRetryPolicy(RetryPolicy{
			TransientInterval: 10 * time.Second,
			RateLimitInterval: 2 * time.Second,
			MaxAttempts:       3,
		}), WithFetcherLogger(discardLogger()))
		f.sleep = func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}

		_, err := f.Fetch(context.Background(), "/flaky")
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if len(waits) != 2 || waits[0] != 10*time.Second {
			t.Errorf("expected two 10s waits, got %v", waits)
		}
	})

	t.Run("cancellation stops unbounded retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		f := NewFetcher(server.URL, WithRetryPolicy(fastPolicy(0)), WithFetcherLogger(discardLogger()))
		attempts := 0
		f.sleep = func(ctx context.Context, d time.Duration) error {
			attempts++
			if attempts == 3 {
				cancel()
			}
			return sleepCtx(ctx, d)
		}

		_, err := f.Fetch(ctx, "/flaky")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestFetcher_RateLimiter(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer server.Close()

	f := NewFetcher(server.URL, WithRequestsPerSecond(1000), WithFetcherLogger(discardLogger()))
	for range 3 {
		if _, err := f.Fetch(context.Background(), "/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "/"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

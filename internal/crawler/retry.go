package crawler

import (
	"context"
	"net/http"
	"time"
)

// FailureKind classifies one failed fetch attempt.
type FailureKind int

const (
	// FailureTransient covers timeouts, refused connections and other
	// attempts that produced no response. They are retried after
	// RetryPolicy.TransientInterval.
	FailureTransient FailureKind = iota + 1

	// FailureRateLimited is an HTTP 429 response, retried after
	// RetryPolicy.RateLimitInterval.
	FailureRateLimited

	// FailureTerminal ends the fetch with ErrNotFound.
	FailureTerminal
)

// String returns the kind's log name.
func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Attempt describes the outcome of one request.
// Err is set when no response was received.
type Attempt struct {
	StatusCode int
	Err        error
}

// RetryPolicy decides what the fetcher does after a failed attempt.
type RetryPolicy struct {
	// TransientInterval is the wait after a FailureTransient attempt.
	TransientInterval time.Duration

	// RateLimitInterval is the wait after a FailureRateLimited attempt.
	RateLimitInterval time.Duration

	// MaxAttempts bounds the attempts of one fetch. Zero retries forever.
	MaxAttempts int

	// Classify maps an attempt to a failure kind. Nil uses ClassifyAttempt.
	Classify func(Attempt) FailureKind
}

// DefaultRetryPolicy retries network failures every 10s and 429s every 2s,
// without an attempt limit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		TransientInterval: 10 * time.Second,
		RateLimitInterval: 2 * time.Second,
		Classify:          ClassifyAttempt,
	}
}

// ClassifyAttempt is the default classification: no response is transient,
// 429 is rate limited and every other status is terminal.
func ClassifyAttempt(a Attempt) FailureKind {
	if a.Err != nil {
		return FailureTransient
	}
	if a.StatusCode == http.StatusTooManyRequests {
		return FailureRateLimited
	}
	return FailureTerminal
}

func (p RetryPolicy) classify(a Attempt) FailureKind {
	if p.Classify == nil {
		return ClassifyAttempt(a)
	}
	return p.Classify(a)
}

// wait returns the backoff before the next attempt.
func (p RetryPolicy) wait(kind FailureKind) time.Duration {
	if kind == FailureRateLimited {
		return p.RateLimitInterval
	}
	return p.TransientInterval
}

// exhausted reports whether attempt number n (1-based) was the last allowed.
func (p RetryPolicy) exhausted(n int) bool {
	return p.MaxAttempts > 0 && n >= p.MaxAttempts
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

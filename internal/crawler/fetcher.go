package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Fetch errors.
var (
	// ErrNotFound is the terminal outcome of a fetch: the page does not exist
	// or its expected content is absent. It ends pagination.
	ErrNotFound = errors.New("page not found")

	// ErrRetriesExhausted is returned when RetryPolicy.MaxAttempts is reached.
	ErrRetriesExhausted = errors.New("fetch retries exhausted")
)

const tracerName = "github.com/nao1215/creatorcrawl/internal/crawler"

// PageSource fetches one listing page as a queryable document.
// Fetcher is the production implementation.
type PageSource interface {
	Fetch(ctx context.Context, path string) (*goquery.Document, error)
}

// Fetcher downloads pages from the listing site and applies the retry policy.
type Fetcher struct {
	client *resty.Client
	policy RetryPolicy
	logger *slog.Logger
	tracer trace.Tracer

	// sleep waits between attempts. Tests replace it to observe backoffs.
	sleep func(context.Context, time.Duration) error

	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	limiter   *rate.Limiter
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRequestTimeout bounds every single attempt.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithRequestsPerSecond gates every attempt through a token bucket.
// Zero or a negative value disables the limiter.
func WithRequestsPerSecond(rps float64) FetcherOption {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithTransport routes requests through rt, e.g. a SOCKS5 transport.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithTracer sets the tracer used for the "fetch" span.
func WithTracer(t trace.Tracer) FetcherOption {
	return func(f *Fetcher) {
		f.tracer = t
	}
}

// NewFetcher creates a Fetcher resolving paths against baseURL.
func NewFetcher(baseURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		policy:    DefaultRetryPolicy(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		sleep:     sleepCtx,
		userAgent: "creatorcrawl",
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(f.timeout).
		SetHeader("User-Agent", f.userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "pl,en;q=0.5").
		SetLogger(restyLogger{f.logger})
	if f.transport != nil {
		client.SetTransport(f.transport)
	}
	if f.limiter != nil {
		limiter := f.limiter
		client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return limiter.Wait(r.Context())
		})
	}
	f.client = client

	return f
}

// Fetch downloads path and parses it. Transient failures and rate limiting
// are retried according to the policy; any other failure response returns
// ErrNotFound. Cancelling ctx aborts both requests and backoff waits.
func (f *Fetcher) Fetch(ctx context.Context, path string) (*goquery.Document, error) {
	ctx, span := f.tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.String("crawler.path", path)))
	defer span.End()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}

		resp, err := f.client.R().SetContext(ctx).Get(path)
		if err == nil && resp.IsSuccess() {
			span.SetAttributes(attribute.Int("crawler.attempts", attempt))
			doc, perr := parseDocument(resp.Body())
			if perr != nil {
				span.SetStatus(codes.Error, "unparseable body")
				f.logger.Warn("unparseable page", "path", path, "error", perr)
				return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, perr)
			}
			f.logger.Debug("page fetched", "path", path, "attempt", attempt)
			return doc, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			span.RecordError(ctxErr)
			return nil, ctxErr
		}

		a := Attempt{Err: err}
		if err == nil {
			a.StatusCode = resp.StatusCode()
		}

		kind := f.policy.classify(a)
		if kind == FailureTerminal {
			span.SetAttributes(attribute.Int("http.status_code", a.StatusCode))
			f.logger.Debug("page not found", "path", path, "status", a.StatusCode, "error", err)
			return nil, fmt.Errorf("%w: %s (status %d)", ErrNotFound, path, a.StatusCode)
		}

		if f.policy.exhausted(attempt) {
			span.SetStatus(codes.Error, "retries exhausted")
			f.logger.Warn("giving up on page", "path", path, "attempts", attempt, "kind", kind.String())
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrRetriesExhausted, path, attempt)
		}

		backoff := f.policy.wait(kind)
		f.logger.Warn("fetch failed, retrying",
			"path", path,
			"kind", kind.String(),
			"status", a.StatusCode,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if err := f.sleep(ctx, backoff); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
}

// parseDocument builds a goquery document from an HTML body.
func parseDocument(body []byte) (*goquery.Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// restyLogger forwards resty's internal messages to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}

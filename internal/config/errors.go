package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidBackoff is returned when a retry backoff is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: must be non-negative")

	// ErrInvalidMaxAttempts is returned when max attempts is negative.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be non-negative (0 retries forever)")

	// ErrInvalidPageDelay is returned when the inter-page delay is negative.
	ErrInvalidPageDelay = errors.New("invalid page delay: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("invalid requests per second: must be non-negative")

	// ErrInvalidConcurrency is returned when the category concurrency cap is negative.
	ErrInvalidConcurrency = errors.New("invalid category concurrency: must be non-negative")

	// ErrIncompleteInflux is returned when an InfluxDB URL is set without org or bucket.
	ErrIncompleteInflux = errors.New("incomplete influx configuration: org and bucket are required")

	// ErrInvalidBatchSize is returned when the InfluxDB batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid influx batch size: must be positive")

	// ErrInvalidSchedule is returned when the cron expression does not parse.
	ErrInvalidSchedule = errors.New("invalid schedule: expected a five-field cron expression")

	// ErrConflictingReportFormats is returned when both --json and --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

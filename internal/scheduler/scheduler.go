// Package scheduler triggers crawl runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work started on every tick. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs jobs on cron expressions. A tick that fires while the
// previous run of the same job is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	location *time.Location
}

// WithLogger sets the logger used for cron events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLocation sets the time zone the expressions are evaluated in.
// The default is the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// New creates a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	o := options{
		logger:   slog.Default(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := cronLogger{logger: o.logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithLocation(o.location),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under a standard five-field expression.
func (s *Scheduler) Add(spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, s.wrap(job))
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return id, nil
}

// AddSchedule registers job under an arbitrary cron.Schedule.
func (s *Scheduler) AddSchedule(schedule cron.Schedule, job Job) cron.EntryID {
	return s.cron.Schedule(schedule, cron.FuncJob(s.wrap(job)))
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		job(s.ctx)
	}
}

// Next returns when the given entry fires next. The zero time means the
// scheduler is not running or the entry does not exist.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop cancels the context passed to running jobs and waits for them to
// return or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// Package schedule repeats pipeline runs on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"libconv/internal/logging"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a Job whenever its schedule fires. A firing that arrives
// while the previous run is still going is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job
	logger   *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New parses spec (standard five-field cron or a descriptor such as @daily).
func New(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("schedule expression required")
	}
	if job == nil {
		return nil, errors.New("job required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return &Scheduler{
		spec:     spec,
		schedule: sched,
		job:      job,
		logger:   logging.NewComponentLogger(logger, "schedule"),
	}, nil
}

// Spec returns the cron expression.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next reports when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run starts the scheduler and blocks until ctx is cancelled. It waits for an
// in-progress job to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.ctx = ctx
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ctx = nil
		s.mu.Unlock()
	}()

	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.fire(ctx) }))
	c.Start()

	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "schedule_start"),
		logging.String("schedule", s.spec),
		logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
	)

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "schedule_stop"))
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.job(ctx)
	if err != nil {
		logging.ErrorWithContext(s.logger, "scheduled run failed", "schedule_run_failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
			logging.String(logging.FieldErrorHint, "the next scheduled run will retry"),
		)
		return
	}
	s.logger.Info("scheduled run finished",
		logging.String(logging.FieldEventType, "schedule_run_complete"),
		logging.Duration("elapsed", time.Since(start)),
		logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
	)
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}

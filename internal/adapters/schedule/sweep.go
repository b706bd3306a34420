package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const defaultRunTimeout = 4 * time.Minute

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// SweepRecorder receives the outcome of every scheduled sweep.
type SweepRecorder interface {
	ObserveSweep(result ports.SweepResult, duration time.Duration, err error)
}

type Options struct {
	// RunTimeout bounds a single sweep; zero uses the default.
	RunTimeout time.Duration
	Recorder   SweepRecorder
	Now        func() time.Time
}

// SweepScheduler re-drives the current UTC day's partition on a cron
// schedule.
type SweepScheduler struct {
	sweeper  ports.Sweeper
	expr     string
	schedule cron.Schedule
	timeout  time.Duration
	recorder SweepRecorder
	now      func() time.Time
}

// ParseSchedule validates a 5-field cron expression or a descriptor such as
// "@every 5m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("sweep schedule is empty")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", expr, err)
	}
	return sched, nil
}

func NewSweepScheduler(sweeper ports.Sweeper, expr string, opts Options) (*SweepScheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SweepScheduler{
		sweeper:  sweeper,
		expr:     strings.TrimSpace(expr),
		schedule: sched,
		timeout:  timeout,
		recorder: opts.Recorder,
		now:      now,
	}, nil
}

// Next reports when the schedule fires after t.
func (s *SweepScheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.UTC())
}

// RunOnce sweeps today's UTC partition.
func (s *SweepScheduler) RunOnce(ctx context.Context) (ports.SweepResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	day := s.now().UTC()
	result, err := s.sweeper.Sweep(runCtx, day)
	duration := time.Since(start)
	if s.recorder != nil {
		s.recorder.ObserveSweep(result, duration, err)
	}
	if err != nil {
		slog.Error("sweep_failed",
			"prefix", result.Prefix,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return result, err
	}
	slog.Info("sweep_completed",
		"prefix", result.Prefix,
		"listed", result.Listed,
		"already_processed", result.AlreadyProcessed,
		"processed_count", result.Triggered,
		"skipped", result.Skipped,
		"duration_ms", duration.Milliseconds(),
	)
	return result, nil
}

// Run blocks until ctx is cancelled, sweeping on every tick. A tick that
// fires while the previous sweep is still running is skipped.
func (s *SweepScheduler) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))

	slog.Info("sweep_scheduler_started", "schedule", s.expr, "next_run", s.Next(s.now()).Format(time.RFC3339))
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	slog.Info("sweep_scheduler_stopped")
	return nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron_"+strings.ReplaceAll(msg, " ", "_"), keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron_"+strings.ReplaceAll(msg, " ", "_"), append(keysAndValues, "error", err)...)
}

// Package scheduler wires up the cron job that periodically triggers the
// batch analysis run. Its lifecycle is owned by the server process: started
// once at startup, stopped at shutdown.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// BatchJob is the operation the scheduler fires once per interval.
type BatchJob interface {
	RunHourlyAnalysis(ctx context.Context) error
}

// Scheduler wraps robfig/cron around the batch analysis job.
type Scheduler struct {
	cron        *cron.Cron
	job         BatchJob
	logger      *slog.Logger
	spec        string
	tickTimeout time.Duration
}

// New creates a Scheduler that fires every interval. tickTimeout bounds a
// single batch run so a slow run cannot overlap the next tick.
func New(job BatchJob, interval, tickTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		job:         job,
		logger:      logger.With("component", "scheduler"),
		spec:        fmt.Sprintf("@every %s", interval),
		tickTimeout: tickTimeout,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)
	return nil
}

// Stop gracefully shuts down the scheduler. It does not wait for a running
// tick; the tick context carries its own timeout.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers a single batch run outside the schedule, for the admin
// trigger endpoint and the one-shot binary.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	tickCtx := ctx
	var cancel context.CancelFunc
	if s.tickTimeout > 0 {
		tickCtx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	if err := s.job.RunHourlyAnalysis(tickCtx); err != nil {
		s.logger.Error("batch analysis run failed", "error", err)
	}
}

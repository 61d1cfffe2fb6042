package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/config"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/logging"
)

// TaskRunner defines background work to execute.
type TaskRunner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to TaskRunner.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler triggers remediation runs based on config.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner TaskRunner
	log    *logging.Logger
}

// New creates scheduler.
func New(cfg config.SchedulerConfig, runner TaskRunner, log *logging.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, runner: runner, log: log}
}

// Interval parses the configured tick.
func (s *Scheduler) Interval() (time.Duration, error) {
	interval, err := time.ParseDuration(s.cfg.Tick)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduler tick %q: %w", s.cfg.Tick, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("scheduler tick must be positive, got %s", interval)
	}
	return interval, nil
}

// Start runs immediately, then once per tick until ctx is done. Run
// failures are logged and do not stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Infof("scheduler disabled")
		return nil
	}
	interval, err := s.Interval()
	if err != nil {
		return err
	}
	s.log.Infof("scheduler started, running every %s", interval)
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.runner.Run(ctx); err != nil {
		s.log.Errorf("scheduled run error: %v", err)
	}
}

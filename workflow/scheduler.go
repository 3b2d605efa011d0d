package workflow

import (
	"context"
	"log/slog"
	"time"
)

// PolicyLister returns the policies a scheduled run should check.
type PolicyLister func(ctx context.Context) ([]string, error)

// StaticPolicies returns a PolicyLister over a fixed list.
func StaticPolicies(names ...string) PolicyLister {
	return func(context.Context) ([]string, error) { return names, nil }
}

// Scheduler runs CheckBatch on a fixed interval.
type Scheduler struct {
	coord    *Coordinator
	list     PolicyLister
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. interval defaults to 24h.
func NewScheduler(coord *Coordinator, list PolicyLister, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{coord: coord, list: list, interval: interval, logger: logger}
}

// Run checks all listed policies once, then every interval. Blocks until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("workflow: scheduler started", "interval", s.interval)
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("workflow: scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	policies, err := s.list(ctx)
	if err != nil {
		s.logger.Error("workflow: list policies", "error", err)
		return
	}
	if len(policies) == 0 {
		s.logger.Debug("workflow: no policies to check")
		return
	}
	br := s.coord.CheckBatch(ctx, policies)
	s.logger.Info("workflow: scheduled batch done", "policies", br.TotalPolicies, "status", br.Status)
}

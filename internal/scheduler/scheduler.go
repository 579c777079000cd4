// Package scheduler owns the daemon loop: one immediate ingestion cycle,
// then one per interval until the context is cancelled.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/korrio/jobradar/internal/pipeline"
)

// Cycle is one scheduled unit of work.
type Cycle func(ctx context.Context) error

// Scheduler ticks on a fixed interval. Overlap protection lives in the
// processor; when a tick finds the previous cycle still running it skips
// rather than queueing.
type Scheduler struct {
	cycle    Cycle
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler running cycle at the given interval.
func NewScheduler(cycle Cycle, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful
// shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	err := s.cycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		s.logger.Warn("previous cycle still running, skipping this tick")
	default:
		s.logger.Error("cycle failed", "error", err)
	}
}

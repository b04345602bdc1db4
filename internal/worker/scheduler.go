package worker

import (
	"context"
	"log/slog"
	"time"

	"dexfren/backend/internal/middleware"
)

// Scheduler publishes an incremental reindex task on every tick.
type Scheduler struct {
	publisher Publisher
	interval  time.Duration
}

func NewScheduler(p Publisher, interval time.Duration) *Scheduler {
	return &Scheduler{publisher: p, interval: interval}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		slog.InfoContext(ctx, "scheduled reindex disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(middleware.NewCorrelationID(ctx))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := PublishReindex(ctx, s.publisher, ModeIncremental, "scheduled"); err != nil {
		slog.ErrorContext(ctx, "failed to schedule reindex", "error", err)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"dexfren/backend/internal/ingest"
	"dexfren/backend/internal/middleware"
)

// Indexer is implemented by *ingest.Pipeline.
type Indexer interface {
	Build(ctx context.Context) (ingest.Report, error)
	Update(ctx context.Context) (ingest.Report, error)
}

type ReindexConsumer struct {
	indexer Indexer
	timeout time.Duration
}

func NewReindexConsumer(indexer Indexer, timeout time.Duration) *ReindexConsumer {
	return &ReindexConsumer{indexer: indexer, timeout: timeout}
}

func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ReindexTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if !ValidMode(task.Mode) {
		slog.Error("poison pill: unknown reindex mode", "mode", task.Mode)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	} else {
		ctx = middleware.NewCorrelationID(ctx)
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "reindex started", "mode", task.Mode, "reason", task.Reason)

	run := h.indexer.Update
	if task.Mode == ModeFull {
		run = h.indexer.Build
	}
	report, err := run(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "reindex failed", "mode", task.Mode, "error", err)
		return err // Retry
	}

	slog.InfoContext(ctx, "reindex finished", "mode", report.Mode, "added", report.Added, "removed", report.Removed)
	return nil
}

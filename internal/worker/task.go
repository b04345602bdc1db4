// Package worker runs knowledge base reindexing in the background. Tasks
// travel over NSQ so HTTP handlers, the scheduler and the PDF watcher never
// block on ingestion.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"dexfren/backend/internal/config"
	"dexfren/backend/internal/middleware"
)

const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

type ReindexTask struct {
	Mode          string `json:"mode"`
	Reason        string `json:"reason"`
	CorrelationID string `json:"correlation_id"`
}

func ValidMode(mode string) bool {
	return mode == ModeFull || mode == ModeIncremental
}

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// PublishReindex enqueues a reindex task tagged with the correlation id of ctx.
func PublishReindex(ctx context.Context, p Publisher, mode, reason string) error {
	if !ValidMode(mode) {
		return fmt.Errorf("unknown reindex mode %q", mode)
	}
	body, err := json.Marshal(ReindexTask{
		Mode:          mode,
		Reason:        reason,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	if err := p.Publish(config.TopicReindex, body); err != nil {
		return fmt.Errorf("publish reindex task: %w", err)
	}
	return nil
}

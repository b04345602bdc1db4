// Package reindex lets operators queue a knowledge base rebuild or update.
package reindex

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"dexfren/backend/internal/middleware"
	"dexfren/backend/internal/worker"
)

type Handler struct {
	pub worker.Publisher
}

func NewHandler(pub worker.Publisher) *Handler {
	return &Handler{pub: pub}
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = worker.ModeIncremental
	}
	if !worker.ValidMode(mode) {
		h.writeError(ctx, w, "INVALID_ARGUMENT", "mode must be full or incremental", http.StatusBadRequest)
		return
	}

	if err := worker.PublishReindex(ctx, h.pub, mode, "api"); err != nil {
		slog.ErrorContext(ctx, "failed to queue reindex", "mode", mode, "error", err)
		h.writeError(ctx, w, "UNAVAILABLE", "failed to queue reindex", http.StatusServiceUnavailable)
		return
	}
	slog.InfoContext(ctx, "reindex queued", "mode", mode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]interface{}{
		"data": map[string]string{
			"mode":          mode,
			"status":        "queued",
			"correlationId": middleware.GetCorrelationID(ctx),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dexfren/backend/internal/cache"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/middleware"
)

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

type CatalogCounter interface {
	Len() int
}

type CacheStats interface {
	Stats() cache.Stats
}

type Handler struct {
	jobRepo   JobRepo
	documents DocumentCounter
	catalog   CatalogCounter
	cache     CacheStats
}

func NewHandler(j JobRepo, d DocumentCounter, c CatalogCounter, qc CacheStats) *Handler {
	return &Handler{jobRepo: j, documents: d, catalog: c, cache: qc}
}

type StatsResponse struct {
	Sources     int         `json:"sources"`
	Documents   int         `json:"documents"`
	Initialized bool        `json:"initialized"`
	FailedJobs  int         `json:"failed_jobs"`
	Cache       cache.Stats `json:"cache"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed items", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed items", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Sources:     h.catalog.Len(),
		FailedJobs:  jCount,
		Initialized: true,
		Cache:       h.cache.Stats(),
	}

	resp.Documents, err = h.documents.Count(ctx)
	switch {
	case errors.Is(err, index.ErrNotInitialized):
		resp.Initialized = false
	case err != nil:
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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

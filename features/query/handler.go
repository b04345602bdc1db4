// Package query exposes knowledge base retrieval over HTTP.
package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/middleware"
)

const (
	ModeRank   = "rank"
	ModeChunks = "chunks"
)

// Ranker is implemented by *retrieval.Ranker. Neither method fails; an empty
// result is a valid answer.
type Ranker interface {
	Rank(ctx context.Context, text string) []document.Document
	RankChunks(ctx context.Context, text string) []document.Document
}

type Handler struct {
	ranker Ranker
}

func NewHandler(r Ranker) *Handler {
	return &Handler{ranker: r}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = ModeRank
	}

	if q == "" {
		h.writeError(ctx, w, "INVALID_ARGUMENT", "query parameter q is required", http.StatusBadRequest)
		return
	}

	var docs []document.Document
	switch mode {
	case ModeRank:
		docs = h.ranker.Rank(ctx, q)
	case ModeChunks:
		docs = h.ranker.RankChunks(ctx, q)
	default:
		h.writeError(ctx, w, "INVALID_ARGUMENT", "mode must be rank or chunks", http.StatusBadRequest)
		return
	}
	if docs == nil {
		docs = []document.Document{}
	}

	slog.InfoContext(ctx, "query answered", "mode", mode, "results", len(docs))

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]interface{}{"count": len(docs), "mode": mode},
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

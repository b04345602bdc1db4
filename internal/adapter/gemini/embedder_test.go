package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"dexfren/backend/internal/adapter/gemini"
)

func fakeGemini(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "batchEmbedContents") {
			var body struct {
				Requests []json.RawMessage `json:"requests"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			embeddings := make([]map[string]any, len(body.Requests))
			for i := range embeddings {
				embeddings[i] = map[string]any{"values": []float32{float32(i), 1}}
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
}

func TestEmbedder_Embed(t *testing.T) {
	ts := fakeGemini(t)
	defer ts.Close()

	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, "test-key", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(ctx, "how do I deploy a DexAppBuilder site")
	require.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestEmbedder_EmbedBatchKeepsOrder(t *testing.T) {
	ts := fakeGemini(t)
	defer ts.Close()

	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, "test-key", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	vecs, err := embedder.EmbedBatch(ctx, []string{"swap", "nft", "token"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestNewEmbedder_MissingKey(t *testing.T) {
	_, err := gemini.NewEmbedder(context.Background(), "")
	assert.ErrorContains(t, err, "gemini api key not configured")
}

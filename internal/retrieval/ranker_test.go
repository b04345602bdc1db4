package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
)

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Query(ctx context.Context, text string, k int) ([]document.Document, error) {
	args := m.Called(ctx, text, k)
	if v := args.Get(0); v != nil {
		return v.([]document.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func testCatalog() *Catalog {
	c := NewCatalog()
	c.Set(document.KindVideo, []document.SourceRecord{
		{URL: "https://youtu.be/swap1", Kind: document.KindVideo, Title: "How to swap on DexKit", Keywords: []string{"swap", "exchange"}},
		{URL: "https://youtu.be/nft1", Kind: document.KindVideo, Title: "Create an NFT collection", Keywords: []string{"nft", "collection"}},
		{URL: "https://youtu.be/token1", Kind: document.KindVideo, Title: "Deploy your token", Keywords: []string{"token", "erc20"}},
	})
	c.Set(document.KindPlatform, []document.SourceRecord{
		{URL: "https://dexappbuilder.dexkit.com/admin/create", Kind: document.KindPlatform, Title: "Create App", Section: "dexkit-dexappbuilder-admin-create-app"},
		{URL: "https://dexappbuilder.dexkit.com/admin", Kind: document.KindPlatform, Title: "Dashboard", Section: "dashboard"},
	})
	return c
}

func chunkDoc(source string, idx int, content string) document.Document {
	return document.Document{
		Content: content,
		Metadata: map[string]any{
			document.KeySource:     source,
			document.KeyType:       document.TypeDocumentationContent,
			document.KeyChunkIndex: idx,
		},
	}
}

func TestRanker_DirectMatchesComeFirst(t *testing.T) {
	q := new(MockQuerier)
	q.On("Query", mock.Anything, "how do I swap tokens", DefaultK).Return([]document.Document{
		chunkDoc("https://docs.dexkit.com/swap", 0, "Swap widget setup"),
	}, nil)

	r := NewRanker(testCatalog(), q)
	docs := r.Rank(context.Background(), "how do I swap tokens")

	assert.Equal(t, []string{
		"https://youtu.be/swap1",
		"https://youtu.be/token1",
		"https://docs.dexkit.com/swap",
	}, sources(docs))
	assert.Equal(t, document.TypeYouTubeMetadata, docs[0].Type())
	assert.Equal(t, -1, docs[0].ChunkIndex())
	q.AssertExpectations(t)
}

func TestRanker_PlatformKeyMatch(t *testing.T) {
	q := new(MockQuerier)
	q.On("Query", mock.Anything, mock.Anything, mock.Anything).Return([]document.Document{}, nil)

	docs := NewRanker(testCatalog(), q).Rank(context.Background(), "where is my dashboard?")
	require.Len(t, docs, 1)
	assert.Equal(t, "https://dexappbuilder.dexkit.com/admin", docs[0].Source())
	assert.Equal(t, document.TypePlatformPage, docs[0].Type())
}

func TestRanker_GenericQueryReturnsCatalogWithoutSearch(t *testing.T) {
	q := new(MockQuerier)
	r := NewRanker(testCatalog(), q, WithMaxResults(2))

	docs := r.Rank(context.Background(), "Show me all tutorials")
	assert.Equal(t, []string{"https://youtu.be/swap1", "https://youtu.be/nft1"}, sources(docs))
	q.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestRanker_DedupeAndCap(t *testing.T) {
	var similar []document.Document
	for i := 0; i < 12; i++ {
		similar = append(similar, chunkDoc("https://docs.dexkit.com/nft", i, fmt.Sprintf("chunk %d", i)))
	}
	similar = append([]document.Document{similar[0]}, similar...)

	q := new(MockQuerier)
	q.On("Query", mock.Anything, mock.Anything, 5).Return(similar, nil)

	docs := NewRanker(testCatalog(), q).Rank(context.Background(), "mint an nft")
	require.Len(t, docs, DefaultMaxResults)
	assert.Equal(t, "https://youtu.be/nft1", docs[0].Source())
	assert.Equal(t, 0, docs[1].ChunkIndex())
	assert.Equal(t, 1, docs[2].ChunkIndex())
}

func TestRanker_NotInitializedFiresHookAndReturnsEmpty(t *testing.T) {
	q := new(MockQuerier)
	q.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("query: %w", index.ErrNotInitialized))

	fired := 0
	r := NewRanker(testCatalog(), q, WithNotReadyHook(func(context.Context) { fired++ }))

	docs := r.Rank(context.Background(), "how to swap")
	assert.Empty(t, docs)
	assert.Equal(t, 1, fired)
}

func TestRanker_FailureReturnsEmpty(t *testing.T) {
	q := new(MockQuerier)
	q.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	fired := 0
	r := NewRanker(testCatalog(), q, WithNotReadyHook(func(context.Context) { fired++ }))

	assert.Empty(t, r.Rank(context.Background(), "how to swap"))
	assert.Empty(t, r.RankChunks(context.Background(), "how to swap"))
	assert.Zero(t, fired)
}

func TestRanker_LogsEveryQuery(t *testing.T) {
	var buf bytes.Buffer
	q := new(MockQuerier)
	q.On("Query", mock.Anything, mock.Anything, mock.Anything).Return([]document.Document{}, nil)

	r := NewRanker(testCatalog(), q, WithQueryLogger(NewQueryLogger(&buf)))
	r.Rank(context.Background(), "create a collection")
	r.RankChunks(context.Background(), "wallet")

	dec := json.NewDecoder(&buf)
	var first, second QueryLogEntry
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "rank", first.Mode)
	assert.Equal(t, 3, first.DirectMatches)
	assert.Equal(t, 3, first.NumResults)
	assert.Equal(t, "chunks", second.Mode)
}

func TestRanker_RankChunks(t *testing.T) {
	q := new(MockQuerier)
	q.On("Query", mock.Anything, "deploy wallet", chunkCandidates).Return([]document.Document{
		chunkDoc("a", 0, "unrelated text"),
		chunkDoc("b", 0, "Deploy the contract, then connect your wallet on DexKit"),
	}, nil)

	docs := NewRanker(testCatalog(), q).RankChunks(context.Background(), "deploy wallet")
	assert.Equal(t, []string{"b", "a"}, sources(docs))
}

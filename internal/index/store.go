// Package index owns the vector index: bulk builds, batched adds,
// replace-by-source and filtered similarity queries over a pluggable Backend.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dexfren/backend/internal/document"
)

// ErrNotInitialized means the backend has no index yet. Callers recover by
// triggering a build, never by retrying the query.
var ErrNotInitialized = errors.New("index not initialized")

const DefaultBatchSize = 50

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts in one
// call; results are in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Record struct {
	Document document.Document
	Vector   []float32
}

// Hit is a query result. Lower distance means more similar.
type Hit struct {
	Document document.Document
	Distance float32
}

// Filter restricts a query to documents whose metadata Field equals Value.
// The zero Filter matches everything.
type Filter struct {
	Field string
	Value string
}

func Namespace(ns string) Filter {
	return Filter{Field: document.KeyNamespace, Value: ns}
}

func (f Filter) IsZero() bool { return f.Field == "" }

func (f Filter) Match(d document.Document) bool {
	if f.IsZero() {
		return true
	}
	v, ok := d.Metadata[f.Field]
	if !ok {
		return false
	}
	if s, ok := v.(string); ok {
		return s == f.Value
	}
	return fmt.Sprint(v) == f.Value
}

// Backend stores vectors with metadata. Search returns hits in ascending
// distance, ties in insertion order, and ErrNotInitialized before the first
// Reset (or restored snapshot).
type Backend interface {
	Reset(ctx context.Context) error
	Insert(ctx context.Context, records []Record) error
	DeleteBySource(ctx context.Context, source string) error
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}

type Store struct {
	backend   Backend
	embedder  Embedder
	batchSize int
}

func NewStore(backend Backend, embedder Embedder, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{backend: backend, embedder: embedder, batchSize: batchSize}
}

// Build replaces the whole index with docs.
func (s *Store) Build(ctx context.Context, docs []document.Document) (int, error) {
	if err := s.backend.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	return s.Add(ctx, docs)
}

// Add embeds and inserts docs in batches, committing each full batch before
// starting the next. On failure the documents of earlier batches stay in
// the index and the returned count says how many made it.
func (s *Store) Add(ctx context.Context, docs []document.Document) (int, error) {
	before, _ := s.backend.Count(ctx)
	added := 0
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))
		batch := docs[start:end]

		records, err := s.embedAll(ctx, batch)
		if err != nil {
			s.logPartial(ctx, before, added, len(docs), err)
			return added, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if err := s.backend.Insert(ctx, records); err != nil {
			s.logPartial(ctx, before, added, len(docs), err)
			return added, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		added += len(batch)
	}

	after, _ := s.backend.Count(ctx)
	slog.InfoContext(ctx, "documents indexed", "added", added, "before", before, "after", after)
	return added, nil
}

func (s *Store) logPartial(ctx context.Context, before, added, total int, err error) {
	after, _ := s.backend.Count(ctx)
	slog.ErrorContext(ctx, "indexing stopped early",
		"added", added, "total", total, "before", before, "after", after, "error", err)
}

// Replace drops every document of source and adds docs in its place.
func (s *Store) Replace(ctx context.Context, source string, docs []document.Document) (int, error) {
	if err := s.backend.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("delete %s: %w", source, err)
	}
	return s.Add(ctx, docs)
}

func (s *Store) Delete(ctx context.Context, source string) error {
	return s.backend.DeleteBySource(ctx, source)
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	return s.backend.Search(ctx, vector, k, filter)
}

// Similar embeds text and queries with it.
func (s *Store) Similar(ctx context.Context, text string, k int, filter Filter) ([]Hit, error) {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, vec, k, filter)
}

func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.backend.Count(ctx)
}

func (s *Store) embedAll(ctx context.Context, docs []document.Document) ([]Record, error) {
	records := make([]Record, len(docs))
	if be, ok := s.embedder.(BatchEmbedder); ok {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		vecs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(docs) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(docs))
		}
		for i, d := range docs {
			records[i] = Record{Document: d, Vector: vecs[i]}
		}
		return records, nil
	}

	for i, d := range docs {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return nil, err
		}
		records[i] = Record{Document: d, Vector: vec}
	}
	return records, nil
}

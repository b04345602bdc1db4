// Package memory is an in-process index backend. Vectors are compared by
// cosine distance and the whole index is snapshotted to a JSON file after
// every mutation so it survives restarts.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio/v2"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
)

const snapshotFile = "index.json"

type entry struct {
	Document document.Document `json:"document"`
	Vector   []float32         `json:"vector"`
}

type Backend struct {
	dir     string
	mu      sync.RWMutex
	entries []entry
	ready   bool
}

// Open loads the snapshot in dir if present. Without one the backend stays
// uninitialized until Reset. An empty dir keeps everything in memory.
func Open(dir string) (*Backend, error) {
	b := &Backend{dir: dir}
	if dir == "" {
		return b, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if errors.Is(err, fs.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &b.entries); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	b.ready = true
	return b, nil
}

func (b *Backend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.ready = true
	return b.persist()
}

func (b *Backend) Insert(ctx context.Context, records []index.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return index.ErrNotInitialized
	}
	for _, r := range records {
		b.entries = append(b.entries, entry{Document: r.Document, Vector: r.Vector})
	}
	return b.persist()
}

func (b *Backend) DeleteBySource(ctx context.Context, source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return index.ErrNotInitialized
	}
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Document.Source() != source {
			kept = append(kept, e)
		}
	}
	clear(b.entries[len(kept):])
	b.entries = kept
	return b.persist()
}

func (b *Backend) Search(ctx context.Context, vector []float32, k int, filter index.Filter) ([]index.Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return nil, index.ErrNotInitialized
	}

	var hits []index.Hit
	for _, e := range b.entries {
		if !filter.Match(e.Document) {
			continue
		}
		hits = append(hits, index.Hit{Document: e.Document.Clone(), Distance: CosineDistance(vector, e.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return 0, index.ErrNotInitialized
	}
	return len(b.entries), nil
}

func (b *Backend) persist() error {
	if b.dir == "" {
		return nil
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(b.entries)
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(b.dir, snapshotFile), data, 0o644)
}

// CosineDistance is 1 - cosine similarity, in [0, 2]. A zero vector is at
// distance 1 from everything.
func CosineDistance(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

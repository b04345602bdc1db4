package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const timeLayout = time.RFC3339

// ProcessedEntry records when an artifact was ingested and from which content.
type ProcessedEntry struct {
	AddedDate     string `json:"added_date"`
	Processed     bool   `json:"processed"`
	LastProcessed string `json:"last_processed,omitempty"`
	Hash          string `json:"hash,omitempty"`
}

// PendingPDF is a PDF that is new or whose content changed since it was last
// processed.
type PendingPDF struct {
	Name   string
	Path   string
	Hash   string
	Reason string // "new" or "changed"
}

// ProcessedFiles is the registry of ingested artifacts: PDF file names and
// video URLs. Each mutation is a read-modify-write of the whole file.
type ProcessedFiles struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewProcessedFiles(path string) *ProcessedFiles {
	return &ProcessedFiles{path: path, now: time.Now}
}

func (p *ProcessedFiles) load() (map[string]ProcessedEntry, error) {
	entries := map[string]ProcessedEntry{}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Entries returns a copy of the registry.
func (p *ProcessedFiles) Entries() (map[string]ProcessedEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

// CheckForUpdates lists PDFs in dir that are unknown, unprocessed, or whose
// hash differs from the recorded one, sorted by name.
func (p *ProcessedFiles) CheckForUpdates(ctx context.Context, dir string) ([]PendingPDF, error) {
	p.mu.Lock()
	entries, err := p.load()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(ctx, "pdf directory not found", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	var pending []PendingPDF
	for _, f := range files {
		if f.IsDir() || !IsPDF(f.Name()) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		h, err := FileHash(path)
		if err != nil {
			slog.WarnContext(ctx, "failed to hash pdf", "file", f.Name(), "error", err)
			continue
		}
		prev, ok := entries[f.Name()]
		switch {
		case !ok || !prev.Processed:
			pending = append(pending, PendingPDF{Name: f.Name(), Path: path, Hash: h, Reason: "new"})
		case prev.Hash != h:
			pending = append(pending, PendingPDF{Name: f.Name(), Path: path, Hash: h, Reason: "changed"})
		}
	}
	slices.SortFunc(pending, func(a, b PendingPDF) int { return strings.Compare(a.Name, b.Name) })
	return pending, nil
}

// Missing lists registered PDFs that no longer exist in dir.
func (p *ProcessedFiles) Missing(dir string) ([]string, error) {
	p.mu.Lock()
	entries, err := p.load()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var gone []string
	for id := range entries {
		if !IsPDF(id) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, id)); errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)
	return gone, nil
}

func (p *ProcessedFiles) MarkProcessed(id, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.load()
	if err != nil {
		return err
	}
	now := p.now().UTC().Format(timeLayout)
	e, ok := entries[id]
	if !ok {
		e.AddedDate = now
	}
	e.Processed = true
	e.LastProcessed = now
	e.Hash = hash
	entries[id] = e
	return writeJSON(p.path, entries)
}

func (p *ProcessedFiles) Forget(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.load()
	if err != nil {
		return err
	}
	if _, ok := entries[id]; !ok {
		return nil
	}
	delete(entries, id)
	return writeJSON(p.path, entries)
}

func (p *ProcessedFiles) IsProcessed(id, hash string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.load()
	if err != nil {
		return false
	}
	e, ok := entries[id]
	return ok && e.Processed && (hash == "" || e.Hash == hash)
}

// NewItems filters ids (video URLs) down to those not yet processed,
// preserving order.
func (p *ProcessedFiles) NewItems(ids []string) ([]string, error) {
	p.mu.Lock()
	entries, err := p.load()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		if e, ok := entries[id]; !ok || !e.Processed {
			out = append(out, id)
		}
	}
	return out, nil
}

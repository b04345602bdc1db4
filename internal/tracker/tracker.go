package tracker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"dexfren/backend/internal/jsontree"
)

var ErrUnavailable = errors.New("tracked source unavailable")

// Source is something whose content can be hashed into a registry Entry.
type Source interface {
	TrackingKey() string
	Snapshot() (Entry, error)
}

// PDFDirectory hashes every *.pdf file directly inside Dir.
type PDFDirectory struct {
	Key string
	Dir string
}

func (p PDFDirectory) TrackingKey() string { return p.Key }

func (p PDFDirectory) Snapshot() (Entry, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w: %s", ErrUnavailable, p.Dir)
		}
		return Entry{}, err
	}
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsPDF(e.Name()) {
			continue
		}
		h, err := FileHash(filepath.Join(p.Dir, e.Name()))
		if err != nil {
			return Entry{}, fmt.Errorf("hash %s: %w", e.Name(), err)
		}
		files[e.Name()] = h
	}
	return Entry{Files: files}, nil
}

// JSONConfig hashes a JSON document by its data, ignoring formatting.
type JSONConfig struct {
	Key  string
	Path string
}

func (c JSONConfig) TrackingKey() string { return c.Key }

func (c JSONConfig) Snapshot() (Entry, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w: %s", ErrUnavailable, c.Path)
		}
		return Entry{}, err
	}
	h, err := jsontree.CanonicalHash(data)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", c.Path, err)
	}
	return Entry{Hash: h}, nil
}

func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Change describes what differs for one tracked source.
type Change struct {
	Key   string
	Files []string // changed file names for directory sources
}

// Tracker compares sources against the hash registry at path.
type Tracker struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Tracker {
	return &Tracker{path: path}
}

// DetectChanges hashes every source and compares against the registry. When
// anything differs the full new registry replaces the old one; otherwise the
// file is left untouched. Labels are ordered by source, then file name.
func (t *Tracker) DetectChanges(ctx context.Context, sources []Source) (bool, []string, error) {
	changes, err := t.Detect(ctx, sources)
	if err != nil {
		return false, nil, err
	}
	return len(changes) > 0, Labels(changes), nil
}

// Labels renders changes as "config:<key>" or "<key>:<file> <what>".
func Labels(changes []Change) []string {
	var labels []string
	for _, c := range changes {
		if c.Files == nil {
			labels = append(labels, "config:"+c.Key)
			continue
		}
		for _, f := range c.Files {
			labels = append(labels, c.Key+":"+f)
		}
	}
	return labels
}

// Detect is DetectChanges returning structured changes.
func (t *Tracker) Detect(ctx context.Context, sources []Source) ([]Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, err := loadRegistry(t.path)
	if err != nil {
		return nil, err
	}

	current := make(Registry, len(previous))
	for k, v := range previous {
		current[k] = v
	}

	var changes []Change
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := src.TrackingKey()
		entry, err := src.Snapshot()
		if err != nil {
			slog.WarnContext(ctx, "tracked source unavailable, keeping previous hash", "key", key, "error", err)
			continue
		}
		old, known := previous[key]
		if known && old.Equal(entry) {
			continue
		}
		current[key] = entry
		changes = append(changes, diff(key, old, entry, known))
	}

	if len(changes) == 0 {
		return nil, nil
	}
	if err := writeJSON(t.path, current); err != nil {
		return nil, fmt.Errorf("write hash registry: %w", err)
	}
	slog.InfoContext(ctx, "hash registry updated", "path", t.path, "changed", len(changes))
	return changes, nil
}

func diff(key string, old, cur Entry, known bool) Change {
	if cur.Files == nil {
		return Change{Key: key}
	}
	var files []string
	for name, h := range cur.Files {
		prev, ok := old.Files[name]
		switch {
		case !known || !ok:
			files = append(files, name+" added")
		case prev != h:
			files = append(files, name+" changed")
		}
	}
	for name := range old.Files {
		if _, ok := cur.Files[name]; !ok {
			files = append(files, name+" removed")
		}
	}
	slices.Sort(files)
	if files == nil {
		files = []string{}
	}
	return Change{Key: key, Files: files}
}

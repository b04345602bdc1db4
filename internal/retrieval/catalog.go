package retrieval

import (
	"slices"
	"sync"

	"dexfren/backend/internal/document"
)

// Catalog holds the structured records direct matching scans. It is
// refreshed by ingestion and read by every query.
type Catalog struct {
	mu      sync.RWMutex
	records []document.SourceRecord
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

// Set replaces the records of the given kinds and keeps the rest.
func (c *Catalog) Set(kind document.Kind, records []document.SourceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]document.SourceRecord, 0, len(c.records)+len(records))
	for _, r := range c.records {
		if r.Kind != kind {
			kept = append(kept, r)
		}
	}
	c.records = append(kept, records...)
}

// Records returns records of kind in load order. No kinds means all.
func (c *Catalog) Records(kinds ...document.Kind) []document.SourceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []document.SourceRecord
	for _, r := range c.records {
		if len(kinds) == 0 || slices.Contains(kinds, r.Kind) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

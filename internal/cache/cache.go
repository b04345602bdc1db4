// Package cache memoizes similarity queries keyed by (text, k).
//
// Entries share one epoch: the timestamp of the first insert after the cache
// was last emptied. Once now - epoch exceeds the TTL every entry is stale, so
// the whole cache is purged and the query recomputed. Within the TTL, entries
// are evicted least-recently-used at capacity.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"dexfren/backend/internal/document"
)

var ErrNotConfigured = errors.New("query cache has no query function")

type QueryFunc func(ctx context.Context, text string, k int) ([]document.Document, error)

type key struct {
	text string
	k    int
}

type Stats struct {
	Hits     int `json:"hits"`
	Misses   int `json:"misses"`
	Capacity int `json:"capacity"`
	Size     int `json:"size"`
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[key, []document.Document]
	query    QueryFunc
	ttl      time.Duration
	capacity int
	epoch    time.Time
	now      func() time.Time
	hits     int
	misses   int
}

func New(capacity int, ttl time.Duration, query QueryFunc, opts ...Option) (*Cache, error) {
	entries, err := lru.New[key, []document.Document](capacity)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	c := &Cache{
		entries:  entries,
		query:    query,
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Query returns cached results for (text, k) or computes and stores them.
// Callers get their own copy of the documents.
func (c *Cache) Query(ctx context.Context, text string, k int) ([]document.Document, error) {
	if c.query == nil {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.entries.Len() > 0 && now.Sub(c.epoch) > c.ttl {
		c.entries.Purge()
	}

	id := key{text: text, k: k}
	if docs, ok := c.entries.Get(id); ok {
		c.hits++
		return document.CloneAll(docs), nil
	}

	c.misses++
	docs, err := c.query(ctx, text, k)
	if err != nil {
		return nil, err
	}
	if c.entries.Len() == 0 {
		c.epoch = now
	}
	c.entries.Add(id, document.CloneAll(docs))
	return docs, nil
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Capacity: c.capacity,
		Size:     c.entries.Len(),
	}
}

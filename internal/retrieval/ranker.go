package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/middleware"
)

const (
	DefaultMaxResults = 10
	DefaultK          = 5

	// chunkCandidates is how many similarity hits RankChunks scores.
	chunkCandidates = 20
)

// Category is a family of questions recognised by keyword.
type Category struct {
	Name  string
	Terms []string
}

var DefaultCategories = []Category{
	{Name: "creation", Terms: []string{"create", "creation", "build", "deploy", "setup", "set up", "new app"}},
	{Name: "exchange", Terms: []string{"exchange", "swap", "trade", "dex"}},
	{Name: "token", Terms: []string{"token", "erc20", "coin"}},
	{Name: "collection", Terms: []string{"collection", "nft", "mint"}},
}

// GenericTerms mark "show me everything" requests.
var GenericTerms = []string{"tutorial", "tutorials", "list", "all videos"}

// Querier answers similarity queries, usually through the query cache.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]document.Document, error)
}

type Option func(*Ranker)

func WithMaxResults(n int) Option { return func(r *Ranker) { r.maxResults = n } }
func WithK(k int) Option          { return func(r *Ranker) { r.k = k } }

func WithQueryLogger(l *QueryLogger) Option { return func(r *Ranker) { r.logger = l } }

// WithNotReadyHook registers fn to run when a query finds no index.
func WithNotReadyHook(fn func(ctx context.Context)) Option {
	return func(r *Ranker) { r.onNotReady = fn }
}

// Ranker blends direct catalog matches with similarity results. It never
// returns an error; failures are logged and yield an empty result.
type Ranker struct {
	catalog    *Catalog
	querier    Querier
	logger     *QueryLogger
	onNotReady func(ctx context.Context)
	maxResults int
	k          int
	categories []Category
}

func NewRanker(catalog *Catalog, querier Querier, opts ...Option) *Ranker {
	r := &Ranker{
		catalog:    catalog,
		querier:    querier,
		maxResults: DefaultMaxResults,
		k:          DefaultK,
		categories: DefaultCategories,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Ranker) Rank(ctx context.Context, text string) []document.Document {
	start := time.Now()
	entry := QueryLogEntry{Query: text, Mode: "rank", CorrelationID: middleware.GetCorrelationID(ctx)}
	var out []document.Document
	defer func() {
		entry.NumResults = len(out)
		entry.Duration = time.Since(start)
		r.log(entry)
	}()

	q := newQuery(text)
	if q.generic() {
		entry.Generic = true
		out = truncate(r.allItems(), r.maxResults)
		entry.DirectMatches = len(out)
		return out
	}

	direct := r.DirectMatches(text)
	entry.DirectMatches = len(direct)

	similar, err := r.querier.Query(ctx, text, r.k)
	if err != nil {
		entry.Error = err.Error()
		r.fail(ctx, text, err)
		return nil
	}

	out = truncate(dedupe(append(direct, similar...)), r.maxResults)
	return out
}

// RankChunks scores similarity candidates by keyword overlap and keeps a
// small mix of strong and weaker matches. See ScoreChunks.
func (r *Ranker) RankChunks(ctx context.Context, text string) []document.Document {
	start := time.Now()
	entry := QueryLogEntry{Query: text, Mode: "chunks", CorrelationID: middleware.GetCorrelationID(ctx)}
	var out []document.Document
	defer func() {
		entry.NumResults = len(out)
		entry.Duration = time.Since(start)
		r.log(entry)
	}()

	candidates, err := r.querier.Query(ctx, text, chunkCandidates)
	if err != nil {
		entry.Error = err.Error()
		r.fail(ctx, text, err)
		return nil
	}
	out = ScoreChunks(text, candidates)
	return out
}

// DirectMatches returns catalog items matched by category keywords (videos)
// or by their section key (platform pages), deduplicated by URL.
func (r *Ranker) DirectMatches(text string) []document.Document {
	q := newQuery(text)
	seen := make(map[string]bool)
	var out []document.Document
	add := func(rec document.SourceRecord) {
		if seen[rec.URL] {
			return
		}
		seen[rec.URL] = true
		out = append(out, recordDocument(rec))
	}

	for _, rec := range r.catalog.Records(document.KindPlatform) {
		if q.sharesWord(keyTerms(rec.Section)) {
			add(rec)
		}
	}

	videos := r.catalog.Records(document.KindVideo)
	for _, cat := range r.categories {
		if !q.matches(cat) {
			continue
		}
		for _, rec := range videos {
			text := rec.SearchText()
			for _, term := range cat.Terms {
				if strings.Contains(text, term) {
					add(rec)
					break
				}
			}
		}
	}
	return out
}

func (r *Ranker) allItems() []document.Document {
	records := r.catalog.Records(document.KindVideo)
	out := make([]document.Document, 0, len(records))
	for _, rec := range records {
		out = append(out, recordDocument(rec))
	}
	return dedupe(out)
}

func (r *Ranker) fail(ctx context.Context, text string, err error) {
	if errors.Is(err, index.ErrNotInitialized) {
		slog.WarnContext(ctx, "knowledge base not initialized, requesting rebuild", "query", text)
		if r.onNotReady != nil {
			r.onNotReady(ctx)
		}
		return
	}
	slog.ErrorContext(ctx, "similarity query failed", "query", text, "error", err)
}

func (r *Ranker) log(entry QueryLogEntry) {
	if r.logger != nil {
		r.logger.Log(entry)
	}
}

func recordDocument(rec document.SourceRecord) document.Document {
	docType := document.TypeYouTubeMetadata
	switch rec.Kind {
	case document.KindPlatform:
		docType = document.TypePlatformPage
	case document.KindDoc:
		docType = document.TypeDocumentationMeta
	case document.KindWeb:
		docType = document.TypeWebPage
	}
	return document.Document{Content: rec.Summary(), Metadata: rec.Metadata(docType)}
}

func keyTerms(key string) []string {
	key = strings.TrimPrefix(strings.ToLower(key), "dexkit-dexappbuilder-admin-")
	return strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
}

func dedupe(docs []document.Document) []document.Document {
	seen := make(map[string]bool, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		k := d.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

func truncate(docs []document.Document, n int) []document.Document {
	if n > 0 && len(docs) > n {
		return docs[:n]
	}
	return docs
}

type query struct {
	text  string
	words map[string]bool
}

func newQuery(text string) query {
	lower := strings.ToLower(text)
	q := query{text: lower, words: make(map[string]bool)}
	for _, w := range strings.FieldsFunc(lower, isSeparator) {
		q.words[w] = true
	}
	return q
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
}

// has reports whether term occurs as a word (or plural) of the query.
// Terms with spaces match as substrings.
func (q query) has(term string) bool {
	if strings.Contains(term, " ") {
		return strings.Contains(q.text, term)
	}
	return q.words[term] || q.words[term+"s"]
}

func (q query) generic() bool {
	for _, t := range GenericTerms {
		if q.has(t) {
			return true
		}
	}
	return false
}

func (q query) matches(c Category) bool {
	if q.has(c.Name) {
		return true
	}
	for _, t := range c.Terms {
		if q.has(t) {
			return true
		}
	}
	return false
}

func (q query) sharesWord(terms []string) bool {
	for _, t := range terms {
		if q.words[t] {
			return true
		}
	}
	return false
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/loader"
	"dexfren/backend/internal/retrieval"
	"dexfren/backend/internal/tracker"
)

// Tracking keys in the hash registry.
const (
	KeyVideos   = "videos"
	KeyDocs     = "docs"
	KeyPlatform = "platform"
	KeyPDF      = "pdf"
)

// RecordLoader loads one JSON-configured source family.
type RecordLoader interface {
	Path() string
	Load(ctx context.Context) ([]document.SourceRecord, []loader.Failure)
}

// Lister is implemented by loaders that can list their records from config
// alone, without fetching anything.
type Lister interface {
	List(ctx context.Context) []document.SourceRecord
}

type PDFSource interface {
	Dir() string
	Load(ctx context.Context) ([]loader.PDFFile, []loader.Failure)
	LoadFile(ctx context.Context, path string) (loader.PDFFile, error)
}

// FailureRecorder keeps per-item ingestion failures for later inspection.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f loader.Failure) error
}

// FailureResolver is implemented by recorders that can drop the failures
// of sources which have since ingested cleanly.
type FailureResolver interface {
	ResolveFailures(ctx context.Context, sources []string) error
}

// PendingFailures is implemented by recorders that keep failures across
// restarts.
type PendingFailures interface {
	PendingSources(ctx context.Context) ([]string, error)
}

type Clearer interface {
	Clear()
}

type Sources struct {
	Videos   RecordLoader
	Docs     RecordLoader
	Platform RecordLoader
	PDFs     PDFSource
}

type Report struct {
	Mode    string   `json:"mode"`
	Changed []string `json:"changed"`
	Added   int      `json:"added"`
	Removed int      `json:"removed"`
	Failed  int      `json:"failed"`
	Before  int      `json:"before"`
	After   int      `json:"after"`
}

type Pipeline struct {
	mu         sync.Mutex
	store      *index.Store
	normalizer *Normalizer
	sources    Sources
	tracker    *tracker.Tracker
	processed  *tracker.ProcessedFiles
	catalog    *retrieval.Catalog
	cache      Clearer
	failures   FailureRecorder

	// retry holds families whose last load had failures. Update reloads
	// them even when their config is unchanged. Families owning a pending
	// failure from an earlier process are added by loadPendingRetries.
	retry map[string]bool
}

type PipelineOption func(*Pipeline)

func WithCache(c Clearer) PipelineOption { return func(p *Pipeline) { p.cache = c } }

func WithFailureRecorder(r FailureRecorder) PipelineOption {
	return func(p *Pipeline) { p.failures = r }
}

func NewPipeline(
	store *index.Store,
	normalizer *Normalizer,
	sources Sources,
	tr *tracker.Tracker,
	processed *tracker.ProcessedFiles,
	catalog *retrieval.Catalog,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		store:      store,
		normalizer: normalizer,
		sources:    sources,
		tracker:    tr,
		processed:  processed,
		catalog:    catalog,
		retry:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) tracked() []tracker.Source {
	var out []tracker.Source
	for _, f := range p.families() {
		out = append(out, tracker.JSONConfig{Key: f.key, Path: f.loader.Path()})
	}
	if p.sources.PDFs != nil {
		out = append(out, tracker.PDFDirectory{Key: KeyPDF, Dir: p.sources.PDFs.Dir()})
	}
	return out
}

type family struct {
	key    string
	loader RecordLoader
}

func (p *Pipeline) families() []family {
	var out []family
	for _, f := range []family{
		{KeyVideos, p.sources.Videos},
		{KeyDocs, p.sources.Docs},
		{KeyPlatform, p.sources.Platform},
	} {
		if f.loader != nil {
			out = append(out, f)
		}
	}
	return out
}

// WarmCatalog fills the catalog from source configs so direct matching and
// stale-record cleanup work before the first build in this process.
func (p *Pipeline) WarmCatalog(ctx context.Context) {
	for _, f := range p.families() {
		l, ok := f.loader.(Lister)
		if !ok {
			continue
		}
		p.setCatalog(f.key, l.List(ctx))
	}
	slog.InfoContext(ctx, "catalog loaded", "records", p.catalog.Len())
}

// Build loads every source and replaces the whole index with it.
func (p *Pipeline) Build(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.build(ctx)
}

func (p *Pipeline) build(ctx context.Context) (Report, error) {
	report := Report{Mode: "full", Before: p.count(ctx)}
	slog.InfoContext(ctx, "building knowledge base")

	var docs []document.Document
	loaded := make(map[string][]document.SourceRecord)
	for _, f := range p.families() {
		recs, failures := f.loader.Load(ctx)
		report.Failed += p.record(ctx, failures)
		p.retry[f.key] = len(failures) > 0
		loaded[f.key] = recs
		docs = append(docs, p.normalizer.Records(recs)...)
	}

	var pdfs []loader.PDFFile
	if p.sources.PDFs != nil {
		var failures []loader.Failure
		pdfs, failures = p.sources.PDFs.Load(ctx)
		report.Failed += p.record(ctx, failures)
		for _, f := range pdfs {
			docs = append(docs, p.normalizer.PDF(f)...)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	added, err := p.store.Build(ctx, docs)
	report.Added = added
	if err != nil {
		report.After = p.count(ctx)
		return report, fmt.Errorf("build index: %w", err)
	}

	for key, recs := range loaded {
		p.setCatalog(key, recs)
	}
	p.clearCache()

	for _, f := range pdfs {
		if err := p.processed.MarkProcessed(f.Name, f.Hash); err != nil {
			slog.WarnContext(ctx, "failed to mark pdf processed", "file", f.Name, "error", err)
		}
	}
	for _, rec := range loaded[KeyVideos] {
		if err := p.processed.MarkProcessed(rec.URL, ""); err != nil {
			slog.WarnContext(ctx, "failed to mark video processed", "url", rec.URL, "error", err)
		}
	}

	var ingested []string
	for _, recs := range loaded {
		for _, rec := range recs {
			ingested = append(ingested, rec.URL)
		}
	}
	for _, f := range pdfs {
		ingested = append(ingested, f.Name)
	}
	p.resolve(ctx, ingested)

	// Prime the registry so the next update only sees later edits.
	if _, err := p.tracker.Detect(ctx, p.tracked()); err != nil {
		slog.WarnContext(ctx, "failed to record source hashes", "error", err)
	}

	report.Changed = []string{"all"}
	report.After = p.count(ctx)
	p.logReport(ctx, report)
	return report, nil
}

// Update re-ingests only the sources that changed since the last run. A
// missing index falls back to a full build.
func (p *Pipeline) Update(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before, err := p.store.Count(ctx)
	switch {
	case errors.Is(err, index.ErrNotInitialized):
		slog.WarnContext(ctx, "index not initialized, running full build")
		return p.build(ctx)
	case err == nil && before == 0:
		// The registries may outlive a wiped index; they say nothing changed.
		slog.WarnContext(ctx, "index is empty, running full build")
		return p.build(ctx)
	}

	report := Report{Mode: "incremental", Before: before}

	changes, err := p.tracker.Detect(ctx, p.tracked())
	if err != nil {
		return report, fmt.Errorf("detect changes: %w", err)
	}

	changedKeys := make(map[string]bool)
	for _, c := range changes {
		changedKeys[c.Key] = true
	}
	report.Changed = tracker.Labels(changes)
	p.loadPendingRetries(ctx)

	for _, f := range p.families() {
		if !changedKeys[f.key] {
			if !p.retry[f.key] {
				continue
			}
			report.Changed = append(report.Changed, "retry:"+f.key)
		}
		if err := p.updateFamily(ctx, f, &report); err != nil {
			return p.finish(ctx, report, err)
		}
	}

	if p.sources.PDFs != nil {
		if err := p.updatePDFs(ctx, &report); err != nil {
			return p.finish(ctx, report, err)
		}
	}

	if report.Added > 0 || report.Removed > 0 {
		p.clearCache()
	}
	return p.finish(ctx, report, nil)
}

func (p *Pipeline) loadPendingRetries(ctx context.Context) {
	pf, ok := p.failures.(PendingFailures)
	if !ok {
		return
	}
	sources, err := pf.PendingSources(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load pending failures", "error", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	pending := make(map[string]bool, len(sources))
	for _, s := range sources {
		pending[s] = true
	}
	for _, f := range p.families() {
		l, ok := f.loader.(Lister)
		if !ok || p.retry[f.key] {
			continue
		}
		for _, rec := range l.List(ctx) {
			if pending[rec.URL] {
				p.retry[f.key] = true
				break
			}
		}
	}
}

func (p *Pipeline) finish(ctx context.Context, report Report, err error) (Report, error) {
	report.After = p.count(ctx)
	if err != nil {
		if errors.Is(err, index.ErrNotInitialized) {
			slog.WarnContext(ctx, "index disappeared during update, running full build")
			return p.build(ctx)
		}
		slog.ErrorContext(ctx, "knowledge base update failed", "error", err,
			"added", report.Added, "before", report.Before, "after", report.After)
		return report, err
	}
	p.logReport(ctx, report)
	return report, nil
}

// updateFamily reloads one config family, replaces every record's documents
// and deletes the documents of records that disappeared.
func (p *Pipeline) updateFamily(ctx context.Context, f family, report *Report) error {
	recs, failures := f.loader.Load(ctx)
	report.Failed += p.record(ctx, failures)
	p.retry[f.key] = len(failures) > 0

	kinds := kindsFor(f.key)
	current := make(map[string]bool, len(recs))
	for _, rec := range recs {
		current[rec.URL] = true
		n, err := p.store.Replace(ctx, rec.URL, p.normalizer.Record(rec))
		report.Added += n
		if err != nil {
			return fmt.Errorf("replace %s: %w", rec.URL, err)
		}
	}

	failed := make(map[string]bool, len(failures))
	for _, fl := range failures {
		failed[fl.Source] = true
	}
	catalog := recs
	for _, old := range p.catalog.Records(kinds...) {
		if current[old.URL] {
			continue
		}
		if failed[old.URL] {
			// Keep what is indexed until the record loads again.
			catalog = append(catalog, old)
			continue
		}
		if err := p.store.Delete(ctx, old.URL); err != nil {
			return fmt.Errorf("delete %s: %w", old.URL, err)
		}
		report.Removed++
	}

	p.setCatalog(f.key, catalog)
	p.resolve(ctx, slices.Sorted(maps.Keys(current)))
	slog.InfoContext(ctx, "source family re-ingested", "family", f.key, "records", len(recs), "failed", len(failures))
	return nil
}

func (p *Pipeline) updatePDFs(ctx context.Context, report *Report) error {
	dir := p.sources.PDFs.Dir()
	pending, err := p.processed.CheckForUpdates(ctx, dir)
	if err != nil {
		return fmt.Errorf("check pdf updates: %w", err)
	}

	for _, pdf := range pending {
		file, err := p.sources.PDFs.LoadFile(ctx, pdf.Path)
		if err != nil {
			report.Failed += p.record(ctx, []loader.Failure{{Source: pdf.Name, Stage: loader.StageExtract, Err: err}})
			continue
		}
		n, err := p.store.Replace(ctx, file.Name, p.normalizer.PDF(file))
		report.Added += n
		if err != nil {
			return fmt.Errorf("replace %s: %w", file.Name, err)
		}
		if err := p.processed.MarkProcessed(file.Name, file.Hash); err != nil {
			slog.WarnContext(ctx, "failed to mark pdf processed", "file", file.Name, "error", err)
		}
		p.resolve(ctx, []string{file.Name})
		slog.InfoContext(ctx, "pdf re-ingested", "file", file.Name, "reason", pdf.Reason)
	}

	gone, err := p.processed.Missing(dir)
	if err != nil {
		return fmt.Errorf("list removed pdfs: %w", err)
	}
	for _, name := range gone {
		if err := p.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		if err := p.processed.Forget(name); err != nil {
			slog.WarnContext(ctx, "failed to forget pdf", "file", name, "error", err)
		}
		report.Removed++
		slog.InfoContext(ctx, "pdf removed from index", "file", filepath.Base(name))
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, failures []loader.Failure) int {
	if p.failures == nil {
		return len(failures)
	}
	for _, f := range failures {
		if err := p.failures.RecordFailure(ctx, f); err != nil {
			slog.WarnContext(ctx, "failed to record ingestion failure", "source", f.Source, "error", err)
		}
	}
	return len(failures)
}

func (p *Pipeline) resolve(ctx context.Context, sources []string) {
	r, ok := p.failures.(FailureResolver)
	if !ok || len(sources) == 0 {
		return
	}
	if err := r.ResolveFailures(ctx, sources); err != nil {
		slog.WarnContext(ctx, "failed to clear resolved ingestion failures", "error", err)
	}
}

func (p *Pipeline) setCatalog(key string, recs []document.SourceRecord) {
	for _, kind := range kindsFor(key) {
		var subset []document.SourceRecord
		for _, r := range recs {
			if r.Kind == kind {
				subset = append(subset, r)
			}
		}
		p.catalog.Set(kind, subset)
	}
}

func (p *Pipeline) clearCache() {
	if p.cache != nil {
		p.cache.Clear()
	}
}

func (p *Pipeline) count(ctx context.Context) int {
	n, err := p.store.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}

func (p *Pipeline) logReport(ctx context.Context, r Report) {
	slog.InfoContext(ctx, "knowledge base updated",
		"mode", r.Mode, "changed", r.Changed, "added", r.Added, "removed", r.Removed,
		"failed", r.Failed, "before", r.Before, "after", r.After)
}

func kindsFor(key string) []document.Kind {
	switch key {
	case KeyVideos:
		return []document.Kind{document.KindVideo}
	case KeyDocs:
		return []document.Kind{document.KindDoc, document.KindWeb}
	case KeyPlatform:
		return []document.Kind{document.KindPlatform}
	}
	return nil
}

// Package ingest turns loaded sources into index documents and keeps the
// index in step with the sources over time.
package ingest

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/loader"
	"dexfren/backend/internal/text"
)

// Normalizer wraps whole-item summaries and body chunks into Documents.
type Normalizer struct {
	splitter *text.Splitter
}

func NewNormalizer(splitter *text.Splitter) *Normalizer {
	return &Normalizer{splitter: splitter}
}

type docTypes struct {
	summary string
	chunk   string
	scraped bool
}

var typesByKind = map[document.Kind]docTypes{
	document.KindVideo:    {summary: document.TypeYouTubeMetadata, chunk: document.TypeYouTubeTranscript},
	document.KindDoc:      {summary: document.TypeDocumentationMeta, chunk: document.TypeDocumentationContent, scraped: true},
	document.KindPlatform: {summary: document.TypePlatformPage, chunk: document.TypePlatformContent, scraped: true},
	document.KindWeb:      {summary: document.TypeWebPage, chunk: document.TypeWebPage, scraped: true},
}

// Record returns the summary document of rec followed by its body chunks in
// order. Scraped bodies are cleaned of navigation noise first.
func (n *Normalizer) Record(rec document.SourceRecord) []document.Document {
	types, ok := typesByKind[rec.Kind]
	if !ok {
		types = typesByKind[document.KindWeb]
	}

	docs := []document.Document{{
		Content:  rec.Summary(),
		Metadata: rec.Metadata(types.summary),
	}}

	body := rec.Body
	if types.scraped {
		body = text.CleanMarkdownNoise(body)
	}
	return append(docs, n.chunks(body, func() map[string]any { return rec.Metadata(types.chunk) }, types.scraped)...)
}

// Records normalizes every record in order.
func (n *Normalizer) Records(recs []document.SourceRecord) []document.Document {
	var docs []document.Document
	for _, r := range recs {
		docs = append(docs, n.Record(r)...)
	}
	return docs
}

// PDF returns the chunks of a PDF file. The file name is the source.
func (n *Normalizer) PDF(f loader.PDFFile) []document.Document {
	title := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	meta := func() map[string]any {
		return map[string]any{
			document.KeySource:     f.Name,
			document.KeyType:       document.TypePDF,
			document.KeyNamespace:  document.NamespacePDF,
			document.KeyCategory:   "pdf",
			document.KeyCategories: []string{"pdf"},
			document.KeyTitle:      title,
			document.KeyFileName:   f.Name,
			document.KeyPageCount:  f.Pages,
		}
	}
	return n.chunks(f.Text, meta, false)
}

// chunks splits body and drops pieces too short to be useful (and, for
// scraped text, boilerplate). Indexes count kept chunks from zero.
func (n *Normalizer) chunks(body string, meta func() map[string]any, dropNoise bool) []document.Document {
	var kept []string
	for _, c := range n.splitter.Split(body) {
		trimmed := strings.TrimSpace(c)
		if utf8.RuneCountInString(trimmed) < document.MinContentLength {
			continue
		}
		if dropNoise && text.IsNoiseChunk(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}

	docs := make([]document.Document, len(kept))
	for i, c := range kept {
		md := meta()
		md[document.KeyChunkIndex] = i
		md[document.KeyTotalChunks] = len(kept)
		docs[i] = document.Document{Content: c, Metadata: md}
	}
	return docs
}

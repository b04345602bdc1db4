// Package document holds the records that flow through ingestion and
// retrieval: SourceRecord before chunking and Document once stored.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Document types.
const (
	TypePDF                  = "pdf"
	TypeYouTubeMetadata      = "youtube_metadata"
	TypeYouTubeTranscript    = "youtube_transcript"
	TypeDocumentationMeta    = "documentation_meta"
	TypeDocumentationContent = "documentation_content"
	TypePlatformPage         = "platform_page"
	TypePlatformContent      = "platform_content"
	TypeWebPage              = "web_page"
)

// Index namespaces. Each content family is queried separately and merged.
const (
	NamespaceVideos   = "videos"
	NamespaceDocs     = "docs"
	NamespacePlatform = "platform"
	NamespacePDF      = "pdf"
)

// Metadata keys.
const (
	KeySource      = "source"
	KeyType        = "type"
	KeyNamespace   = "namespace"
	KeyCategory    = "category"
	KeyCategories  = "categories"
	KeyTitle       = "title"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
	KeyVideoID     = "video_id"
	KeyLanguage    = "language"
	KeyDuration    = "duration"
	KeyDifficulty  = "difficulty"
	KeyPriority    = "priority"
	KeyLastUpdated = "last_updated"
	KeySection     = "section"
	KeyFileName    = "file_name"
	KeyPageCount   = "page_count"
	KeyKeywords    = "keywords"
)

// MinContentLength is the shortest chunk worth indexing, in characters.
const MinContentLength = 50

// Document is the unit stored in and returned from the index. Every document
// belongs to exactly one source; chunks of the same source differ by
// chunk_index.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (d Document) str(key string) string {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (d Document) Source() string    { return d.str(KeySource) }
func (d Document) Type() string      { return d.str(KeyType) }
func (d Document) Namespace() string { return d.str(KeyNamespace) }
func (d Document) Title() string     { return d.str(KeyTitle) }

// ChunkIndex returns the chunk position, or -1 for whole-item documents.
// Metadata read back from JSON carries numbers as float64 or json.Number.
func (d Document) ChunkIndex() int {
	switch v := d.Metadata[KeyChunkIndex].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return -1
		}
		return int(n)
	default:
		return -1
	}
}

// Key identifies a document across retrieval paths: (source, type, chunk).
func (d Document) Key() string {
	return d.Source() + "|" + d.Type() + "|" + strconv.Itoa(d.ChunkIndex())
}

// Clone copies the metadata map so callers can mutate the result.
func (d Document) Clone() Document {
	md := make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		md[k] = v
	}
	return Document{Content: d.Content, Metadata: md}
}

func CloneAll(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

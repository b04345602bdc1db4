package document

import (
	"strings"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindDoc      Kind = "doc"
	KindPlatform Kind = "platform"
	KindWeb      Kind = "web"
)

// Namespace maps a record kind to the index partition it is stored in.
func (k Kind) Namespace() string {
	switch k {
	case KindVideo:
		return NamespaceVideos
	case KindPlatform:
		return NamespacePlatform
	default:
		return NamespaceDocs
	}
}

// SourceRecord is one ingestible item (video, documentation page, platform
// page) before chunking. URL is the primary key across every source.
type SourceRecord struct {
	URL         string   `json:"url"`
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Body        string   `json:"body,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	// CategoryPaths keeps every full path the record was found under,
	// e.g. "product_a/tutorials".
	CategoryPaths []string `json:"category_paths,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	RelatedDocs   []string `json:"related_docs,omitempty"`
	VideoID       string   `json:"video_id,omitempty"`
	Language      string   `json:"language,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	LastUpdated   string   `json:"last_updated,omitempty"`
	Section       string   `json:"section,omitempty"`
}

// AddPath extends the category list with the components of path, skipping
// components already present, and remembers the joined path.
func (r *SourceRecord) AddPath(path []string) {
	if len(path) == 0 {
		return
	}
	r.Categories = union(r.Categories, path)
	r.CategoryPaths = union(r.CategoryPaths, []string{strings.Join(path, "/")})
}

// Merge folds another occurrence of the same URL into r. List fields are
// unioned; scalar fields are only filled when still empty.
func (r *SourceRecord) Merge(other SourceRecord) {
	r.Categories = union(r.Categories, other.Categories)
	r.CategoryPaths = union(r.CategoryPaths, other.CategoryPaths)
	r.Keywords = union(r.Keywords, other.Keywords)
	r.Topics = union(r.Topics, other.Topics)
	r.RelatedDocs = union(r.RelatedDocs, other.RelatedDocs)

	fill(&r.Title, other.Title)
	fill(&r.Description, other.Description)
	fill(&r.Body, other.Body)
	fill(&r.VideoID, other.VideoID)
	fill(&r.Language, other.Language)
	fill(&r.Duration, other.Duration)
	fill(&r.Difficulty, other.Difficulty)
	fill(&r.LastUpdated, other.LastUpdated)
	fill(&r.Section, other.Section)
	if r.Priority == 0 {
		r.Priority = other.Priority
	}
}

// Category is the first full path the record was found under.
func (r SourceRecord) Category() string {
	if len(r.CategoryPaths) > 0 {
		return r.CategoryPaths[0]
	}
	if len(r.Categories) > 0 {
		return r.Categories[0]
	}
	return "general"
}

// Summary is the whole-item text indexed alongside the record's chunks.
func (r SourceRecord) Summary() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(r.Title)
	b.WriteString("\n\nDescription: ")
	b.WriteString(r.Description)
	if len(r.Keywords) > 0 {
		b.WriteString("\n\nKeywords: ")
		b.WriteString(strings.Join(r.Keywords, ", "))
	}
	if len(r.Topics) > 0 {
		b.WriteString("\n\nTopics: ")
		b.WriteString(strings.Join(r.Topics, ", "))
	}
	return b.String()
}

// Metadata builds the metadata shared by every document derived from r.
func (r SourceRecord) Metadata(docType string) map[string]any {
	md := map[string]any{
		KeySource:     r.URL,
		KeyType:       docType,
		KeyNamespace:  r.Kind.Namespace(),
		KeyCategory:   r.Category(),
		KeyCategories: append([]string(nil), r.Categories...),
		KeyTitle:      r.Title,
	}
	set := func(key, value string) {
		if value != "" {
			md[key] = value
		}
	}
	set(KeyVideoID, r.VideoID)
	set(KeyLanguage, r.Language)
	set(KeyDuration, r.Duration)
	set(KeyDifficulty, r.Difficulty)
	set(KeyLastUpdated, r.LastUpdated)
	set(KeySection, r.Section)
	if r.Priority != 0 {
		md[KeyPriority] = r.Priority
	}
	if len(r.Keywords) > 0 {
		md[KeyKeywords] = append([]string(nil), r.Keywords...)
	}
	return md
}

// SearchText is the lower-cased text direct matching runs against.
func (r SourceRecord) SearchText() string {
	return strings.ToLower(r.Title + " " + strings.Join(r.Keywords, " ") + " " + strings.Join(r.Topics, " "))
}

func union(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

package loader

import (
	"context"
	"log/slog"
	"strings"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/jsontree"
)

// VideoListKey holds a flat list of video URLs without metadata.
const VideoListKey = "video_list"

const generalCategory = "general"

// ParseVideoTree walks a video config tree depth-first. Any object carrying a
// url (normally with a title) is a video entry and the keys traversed to
// reach it form its category path. Strings inside arrays are bare video URLs.
// A URL seen more than once is merged into its first record. Records come
// back in first-seen order.
func ParseVideoTree(tree *jsontree.Value) []document.SourceRecord {
	c := &videoCollector{index: make(map[string]int)}
	for _, m := range tree.Members() {
		if m.Key == VideoListKey {
			c.walk(m.Value, []string{generalCategory})
			continue
		}
		c.walk(m.Value, []string{m.Key})
	}
	if !tree.IsObject() {
		c.walk(tree, nil)
	}
	return c.records
}

type videoCollector struct {
	records []document.SourceRecord
	index   map[string]int
}

func (c *videoCollector) walk(node *jsontree.Value, path []string) {
	switch node.Kind() {
	case jsontree.Object:
		if node.Field("url") != "" {
			c.add(videoEntry(node, path))
			return
		}
		for _, m := range node.Members() {
			c.walk(m.Value, appendPath(path, m.Key))
		}
	case jsontree.Array:
		for _, item := range node.Items() {
			if s, ok := item.Str(); ok {
				if s = strings.TrimSpace(s); s != "" {
					rec := document.SourceRecord{URL: s, Kind: document.KindVideo}
					rec.AddPath(path)
					c.add(rec)
				}
				continue
			}
			c.walk(item, path)
		}
	}
}

func (c *videoCollector) add(rec document.SourceRecord) {
	if i, ok := c.index[rec.URL]; ok {
		c.records[i].Merge(rec)
		return
	}
	c.index[rec.URL] = len(c.records)
	c.records = append(c.records, rec)
}

func videoEntry(node *jsontree.Value, path []string) document.SourceRecord {
	rec := document.SourceRecord{
		URL:         node.Field("url"),
		Kind:        document.KindVideo,
		Title:       node.Field("title"),
		Description: node.Field("description"),
		Keywords:    node.Strings("keywords"),
		Topics:      node.Strings("topics"),
		RelatedDocs: node.Strings("related_docs"),
		Duration:    node.Field("duration"),
		Difficulty:  node.Field("difficulty"),
		Language:    node.Field("language"),
	}
	if p, ok := getInt(node, "priority"); ok {
		rec.Priority = p
	}
	if cat := node.Field("category"); cat != "" {
		path = appendPath(path, cat)
	}
	rec.AddPath(path)
	return rec
}

func getInt(node *jsontree.Value, key string) (int, bool) {
	v, ok := node.Get(key)
	if !ok {
		return 0, false
	}
	return v.Int()
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

// VideoLoader reads the video config and enriches each entry through a
// VideoFetcher. Entries whose URL is not a YouTube video are skipped.
type VideoLoader struct {
	path    string
	fetcher *VideoFetcher
}

func NewVideoLoader(path string, fetcher *VideoFetcher) *VideoLoader {
	return &VideoLoader{path: path, fetcher: fetcher}
}

func (l *VideoLoader) Path() string { return l.path }

func (l *VideoLoader) Load(ctx context.Context) ([]document.SourceRecord, []Failure) {
	records := ParseVideoTree(ReadTree(ctx, l.path))

	var (
		out      []document.SourceRecord
		failures []Failure
	)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		id, err := ExtractVideoID(rec.URL)
		if err != nil {
			slog.WarnContext(ctx, "skipping video", "url", rec.URL, "error", err)
			failures = append(failures, Failure{Source: rec.URL, Stage: StageRead, Err: err})
			continue
		}
		rec.VideoID = id
		if l.fetcher != nil {
			l.fetcher.Enrich(ctx, &rec)
		}
		if rec.Title == "" {
			rec.Title = rec.URL
		}
		out = append(out, rec)
	}
	slog.InfoContext(ctx, "videos loaded", "path", l.path, "loaded", len(out), "skipped", len(failures))
	return out, failures
}

// List returns the configured videos without any network lookups. Invalid
// URLs are dropped.
func (l *VideoLoader) List(ctx context.Context) []document.SourceRecord {
	var out []document.SourceRecord
	for _, rec := range ParseVideoTree(ReadTree(ctx, l.path)) {
		id, err := ExtractVideoID(rec.URL)
		if err != nil {
			continue
		}
		rec.VideoID = id
		if rec.Title == "" {
			rec.Title = rec.URL
		}
		out = append(out, rec)
	}
	return out
}

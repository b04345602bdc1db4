package loader

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/jsontree"
)

// Target is one page to scrape, with its position in the config tree.
type Target struct {
	URL     string
	Kind    document.Kind
	Path    []string
	Section string
}

// ExtraURLsKey lists standalone web pages in the documentation config.
const ExtraURLsKey = "extra_urls"

// ResolveLinks turns section paths into absolute URLs on base's host.
// Fragments are stripped, links matching any exclusion pattern and links to
// other hosts are dropped, and duplicates are removed.
func ResolveLinks(base *url.URL, links []string, exclusions []*regexp.Regexp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, link := range links {
		ref, err := url.Parse(strings.TrimSpace(link))
		if err != nil {
			continue
		}
		u := base.ResolveReference(ref)
		if u.Host != base.Host {
			continue
		}
		u.Fragment = ""
		normalized := u.String()

		excluded := false
		for _, ex := range exclusions {
			if ex.MatchString(normalized) {
				excluded = true
				break
			}
		}
		if excluded || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

// CompileExclusions compiles patterns, logging and skipping invalid ones.
func CompileExclusions(ctx context.Context, patterns []string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.WarnContext(ctx, "invalid exclusion pattern", "pattern", p, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// DocsTargets reads a documentation tree of the form
//
//	{"product": {"base_url": "https://docs.x", "exclude": ["..."],
//	             "sections": {"name": "/path", "group": {...}}},
//	 "extra_urls": ["https://..."]}
//
// Section values may be paths, arrays of paths or nested groups.
func DocsTargets(ctx context.Context, tree *jsontree.Value) []Target {
	var targets []Target
	seen := make(map[string]bool)
	add := func(t Target) {
		if seen[t.URL] {
			return
		}
		seen[t.URL] = true
		targets = append(targets, t)
	}

	for _, product := range tree.Members() {
		if product.Key == ExtraURLsKey {
			for _, u := range tree.Strings(ExtraURLsKey) {
				add(Target{URL: u, Kind: document.KindWeb, Path: []string{"web"}})
			}
			continue
		}
		node := product.Value
		base, err := url.Parse(node.Field("base_url"))
		if err != nil || base.Host == "" {
			slog.WarnContext(ctx, "documentation product without a valid base_url", "product", product.Key)
			continue
		}
		exclusions := CompileExclusions(ctx, node.Strings("exclude"))
		sections, _ := node.Get("sections")
		if sections == nil {
			sections = jsontree.NewString("")
		}
		walkSections(sections, []string{product.Key}, product.Key, func(path []string, section, link string) {
			for _, u := range ResolveLinks(base, []string{link}, exclusions) {
				add(Target{URL: u, Kind: document.KindDoc, Path: path, Section: section})
			}
		})
	}
	return targets
}

func walkSections(node *jsontree.Value, path []string, section string, visit func(path []string, section, link string)) {
	switch node.Kind() {
	case jsontree.String:
		visit(path, section, node.Text())
	case jsontree.Array:
		for _, item := range node.Items() {
			walkSections(item, path, section, visit)
		}
	case jsontree.Object:
		for _, m := range node.Members() {
			walkSections(m.Value, appendPath(path, m.Key), m.Key, visit)
		}
	}
}

// PlatformTargets reads a platform tree grouped by product. Every string
// starting with http is a page; its category path is the chain of ancestor
// keys and its section is the key of the object holding it.
func PlatformTargets(tree *jsontree.Value) []Target {
	var targets []Target
	seen := make(map[string]bool)
	var walk func(node *jsontree.Value, path []string, section string)
	walk = func(node *jsontree.Value, path []string, section string) {
		for _, m := range node.Members() {
			switch m.Value.Kind() {
			case jsontree.String:
				u := m.Value.Text()
				if !strings.HasPrefix(u, "http") || seen[u] {
					continue
				}
				seen[u] = true
				s := section
				if s == "" {
					s = m.Key
				}
				targets = append(targets, Target{URL: u, Kind: document.KindPlatform, Path: path, Section: s})
			case jsontree.Object:
				walk(m.Value, appendPath(path, m.Key), m.Key)
			}
		}
	}
	for _, top := range tree.Members() {
		if top.Value.IsObject() {
			walk(top.Value, []string{top.Key}, "")
		}
	}
	return targets
}

// PageLoader scrapes a fixed set of targets into SourceRecords.
type PageLoader struct {
	path    string
	scraper *Scraper
	targets func(ctx context.Context, tree *jsontree.Value) []Target
}

func NewDocsLoader(path string, scraper *Scraper) *PageLoader {
	return &PageLoader{path: path, scraper: scraper, targets: DocsTargets}
}

func NewPlatformLoader(path string, scraper *Scraper) *PageLoader {
	return &PageLoader{
		path:    path,
		scraper: scraper,
		targets: func(_ context.Context, tree *jsontree.Value) []Target { return PlatformTargets(tree) },
	}
}

func (l *PageLoader) Path() string { return l.path }

// Targets lists what Load would scrape without fetching anything.
func (l *PageLoader) Targets(ctx context.Context) []Target {
	return l.targets(ctx, ReadTree(ctx, l.path))
}

func (l *PageLoader) Load(ctx context.Context) ([]document.SourceRecord, []Failure) {
	var (
		records  []document.SourceRecord
		failures []Failure
	)
	for _, t := range l.Targets(ctx) {
		if ctx.Err() != nil {
			break
		}
		page, err := l.scraper.Scrape(ctx, t.URL)
		if err != nil {
			slog.WarnContext(ctx, "skipping page", "url", t.URL, "error", err)
			failures = append(failures, Failure{Source: t.URL, Stage: StageFetch, Err: err})
			continue
		}
		records = append(records, RecordFromPage(t, page))
	}
	slog.InfoContext(ctx, "pages loaded", "path", l.path, "loaded", len(records), "failed", len(failures))
	return records, failures
}

// List returns a record per target built from the config alone.
func (l *PageLoader) List(ctx context.Context) []document.SourceRecord {
	targets := l.Targets(ctx)
	out := make([]document.SourceRecord, 0, len(targets))
	for _, t := range targets {
		out = append(out, RecordFromPage(t, Page{URL: t.URL}))
	}
	return out
}

// RecordFromPage builds the SourceRecord for a scraped target, falling back to
// a title and description derived from the section key.
func RecordFromPage(t Target, page Page) document.SourceRecord {
	rec := document.SourceRecord{
		URL:         t.URL,
		Kind:        t.Kind,
		Title:       page.Title,
		Description: page.Description,
		Body:        page.Content,
		Section:     t.Section,
	}
	rec.AddPath(t.Path)
	if rec.Title == "" {
		rec.Title = TitleFromKey(t.Section)
	}
	if rec.Description == "" && t.Kind == document.KindPlatform {
		rec.Description = DescriptionFromKey(t.Section)
	}
	return rec
}

// TitleFromKey turns a config key such as "create-dapp" into "Create Dapp".
func TitleFromKey(key string) string {
	key = strings.TrimPrefix(key, "dexkit-dexappbuilder-admin-")
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func DescriptionFromKey(key string) string {
	switch {
	case strings.Contains(key, "create"):
		return "Create and deploy your DApp"
	case strings.Contains(key, "quick"):
		return "Quick build options"
	case strings.Contains(key, "dashboard"):
		return "Manage your DApps"
	default:
		return "Platform access"
	}
}

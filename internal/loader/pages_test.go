package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexfren/backend/internal/document"
)

func TestResolveLinks(t *testing.T) {
	base, _ := url.Parse("https://docs.dexkit.com/guide/")
	tests := []struct {
		name       string
		links      []string
		exclusions []*regexp.Regexp
		want       []string
	}{
		{
			name:  "Relative and absolute paths",
			links: []string{"intro", "/wallets", "https://docs.dexkit.com/swap"},
			want:  []string{"https://docs.dexkit.com/guide/intro", "https://docs.dexkit.com/wallets", "https://docs.dexkit.com/swap"},
		},
		{
			name:  "External host ignored",
			links: []string{"https://github.com/dexkit", "https://api.docs.dexkit.com/x"},
			want:  nil,
		},
		{
			name:  "Fragment stripping and dedupe",
			links: []string{"/nft#mint", "/nft#top", "/nft"},
			want:  []string{"https://docs.dexkit.com/nft"},
		},
		{
			name:       "Exclusion pattern",
			links:      []string{"/valid", "/changelog/v1"},
			exclusions: []*regexp.Regexp{regexp.MustCompile(`changelog`)},
			want:       []string{"https://docs.dexkit.com/valid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLinks(base, tt.links, tt.exclusions))
		})
	}
}

func TestDocsTargets(t *testing.T) {
	tree := mustTree(t, `{
		"dexappbuilder": {
			"base_url": "https://docs.dexkit.com",
			"exclude": ["/legacy/", "("],
			"sections": {
				"getting-started": "/start",
				"features": {"swap": "/features/swap", "nft": ["/features/nft", "/legacy/nft"]}
			}
		},
		"broken": {"sections": {"a": "/a"}},
		"extra_urls": ["https://blog.dexkit.com/post"]
	}`)

	targets := DocsTargets(context.Background(), tree)
	require.Len(t, targets, 4)

	assert.Equal(t, "https://docs.dexkit.com/start", targets[0].URL)
	assert.Equal(t, []string{"dexappbuilder", "getting-started"}, targets[0].Path)
	assert.Equal(t, "getting-started", targets[0].Section)

	assert.Equal(t, "https://docs.dexkit.com/features/swap", targets[1].URL)
	assert.Equal(t, []string{"dexappbuilder", "features", "swap"}, targets[1].Path)

	assert.Equal(t, "https://docs.dexkit.com/features/nft", targets[2].URL)
	assert.Equal(t, document.KindDoc, targets[2].Kind)

	assert.Equal(t, "https://blog.dexkit.com/post", targets[3].URL)
	assert.Equal(t, document.KindWeb, targets[3].Kind)
}

func TestPlatformTargets(t *testing.T) {
	tree := mustTree(t, `{
		"products": {
			"dexappbuilder": {
				"home": "https://dexappbuilder.dexkit.com",
				"dexkit-dexappbuilder-admin": {
					"dexkit-dexappbuilder-admin-create-dapp": "https://dexappbuilder.dexkit.com/admin/create",
					"notes": "not a url"
				}
			}
		},
		"version": "1.0"
	}`)

	targets := PlatformTargets(tree)
	require.Len(t, targets, 2)

	assert.Equal(t, "https://dexappbuilder.dexkit.com", targets[0].URL)
	assert.Equal(t, []string{"products", "dexappbuilder"}, targets[0].Path)
	assert.Equal(t, "dexappbuilder", targets[0].Section)

	assert.Equal(t, []string{"products", "dexappbuilder", "dexkit-dexappbuilder-admin"}, targets[1].Path)
	assert.Equal(t, "dexkit-dexappbuilder-admin", targets[1].Section)

	rec := RecordFromPage(Target{URL: targets[1].URL, Kind: document.KindPlatform, Path: targets[1].Path, Section: "dexkit-dexappbuilder-admin-create-dapp"}, Page{})
	assert.Equal(t, "Create Dapp", rec.Title)
	assert.Equal(t, "Create and deploy your DApp", rec.Description)
	assert.Equal(t, "products/dexappbuilder/dexkit-dexappbuilder-admin", rec.Category())
}

const samplePage = `<html><head>
<title>Swap | DexKit Docs</title>
<meta name="description" content="How swaps work">
</head><body>
<nav><a href="/">Home</a></nav>
<main>
  <h1>Swap tokens</h1>
  <p>Pick the token you want to sell and the token you want to buy.</p>
  <script>track()</script>
  <ul><li>Connect your wallet</li><li>Confirm the trade</li></ul>
  <footer>© DexKit</footer>
</main>
</body></html>`

func TestExtractPage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	require.NoError(t, err)

	p := ExtractPage("https://docs.dexkit.com/swap", doc)
	assert.Equal(t, "Swap tokens", p.Title)
	assert.Equal(t, "How swaps work", p.Description)
	assert.Contains(t, p.Content, "## Swap tokens")
	assert.Contains(t, p.Content, "Pick the token you want to sell")
	assert.Contains(t, p.Content, "Confirm the trade")
	assert.NotContains(t, p.Content, "track()")
	assert.NotContains(t, p.Content, "© DexKit")
}

func TestPageLoader_Load(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "documentation_urls.json")
	cfg := `{"dexkit": {"base_url": "` + server.URL + `", "sections": {"swap": "/swap", "gone": "/missing"}}}`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	records, failures := NewDocsLoader(path, NewScraper(5*time.Second, 0)).Load(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, server.URL+"/swap", records[0].URL)
	assert.Equal(t, "Swap tokens", records[0].Title)
	assert.Equal(t, "swap", records[0].Section)
	assert.Equal(t, []string{"dexkit", "swap"}, records[0].Categories)

	require.Len(t, failures, 1)
	assert.Equal(t, server.URL+"/missing", failures[0].Source)
	assert.ErrorIs(t, failures[0], ErrSourceUnavailable)
}

func TestScraper_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewScraper(20*time.Millisecond, 0).Scrape(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

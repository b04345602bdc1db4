package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexfren/backend/internal/document"
)

type fakeYouTube struct {
	captions map[string]string // lang(+tlang) -> xml
	tracks   string
	requests []string
}

func (f *fakeYouTube) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "Create your DEX in 5 minutes"})
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta property="og:description" content="A full DexAppBuilder walkthrough"></head></html>`))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") == "list" {
			f.requests = append(f.requests, "list")
			_, _ = w.Write([]byte(f.tracks))
			return
		}
		key := q.Get("lang")
		if tl := q.Get("tlang"); tl != "" {
			key += "->" + tl
		}
		f.requests = append(f.requests, key)
		body, ok := f.captions[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func newTestFetcher(t *testing.T, fake *fakeYouTube) *VideoFetcher {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return NewVideoFetcher(5*time.Second,
		WithWatchBase(server.URL),
		WithTimedTextURL(server.URL+"/timedtext"),
	)
}

func TestVideoFetcher_TranscriptFallbackOrder(t *testing.T) {
	tests := []struct {
		name         string
		captions     map[string]string
		tracks       string
		wantText     string
		wantLanguage string
		wantRequests []string
	}{
		{
			name:         "English first",
			captions:     map[string]string{"en": `<transcript><text start="0">Hello &amp;amp; welcome</text><text start="1">to DexKit</text></transcript>`},
			wantText:     "Hello & welcome\nto DexKit",
			wantLanguage: "en",
			wantRequests: []string{"en"},
		},
		{
			name:         "Spanish when English is missing",
			captions:     map[string]string{"es": `<transcript><text>Hola</text></transcript>`},
			wantText:     "Hola",
			wantLanguage: "es",
			wantRequests: []string{"en", "es"},
		},
		{
			name:         "Translate first available track",
			captions:     map[string]string{"pt->en": `<transcript><text>Translated</text></transcript>`},
			tracks:       `<transcript_list><track lang_code="pt" name=""/></transcript_list>`,
			wantText:     "Translated",
			wantLanguage: "en",
			wantRequests: []string{"en", "es", "list", "pt->en"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeYouTube{captions: tt.captions, tracks: tt.tracks}
			f := newTestFetcher(t, fake)

			res, err := f.Transcript(context.Background(), "vid1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantLanguage, res.Language)
			assert.Equal(t, tt.wantRequests, fake.requests)
		})
	}
}

func TestVideoFetcher_NoTranscript(t *testing.T) {
	fake := &fakeYouTube{tracks: `<transcript_list></transcript_list>`}
	f := newTestFetcher(t, fake)

	_, err := f.Transcript(context.Background(), "vid1")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestVideoFetcher_Enrich(t *testing.T) {
	fake := &fakeYouTube{captions: map[string]string{"en": `<transcript><text>Step one</text></transcript>`}}
	f := newTestFetcher(t, fake)

	rec := document.SourceRecord{URL: "https://youtu.be/vid1", Kind: document.KindVideo, VideoID: "vid1"}
	f.Enrich(context.Background(), &rec)

	assert.Equal(t, "Create your DEX in 5 minutes", rec.Title)
	assert.Equal(t, "A full DexAppBuilder walkthrough", rec.Description)
	assert.Equal(t, "Step one", rec.Body)
	assert.Equal(t, "en", rec.Language)
}

func TestVideoFetcher_EnrichKeepsConfiguredFields(t *testing.T) {
	fake := &fakeYouTube{}
	f := newTestFetcher(t, fake)

	rec := document.SourceRecord{VideoID: "vid1", Title: "Configured", Description: "Configured description"}
	f.Enrich(context.Background(), &rec)

	assert.Equal(t, "Configured", rec.Title)
	assert.Equal(t, "Configured description", rec.Description)
	assert.Empty(t, rec.Body)
}

func TestVideoFetcher_DataAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid1", r.URL.Query().Get("id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":             "vid1",
				"snippet":        map[string]any{"title": "API title", "description": "API description", "defaultAudioLanguage": "en"},
				"contentDetails": map[string]any{"duration": "PT5M30S"},
			}},
		})
	}))
	defer api.Close()

	fake := &fakeYouTube{}
	web := httptest.NewServer(fake.handler(t))
	defer web.Close()

	f := NewVideoFetcher(5*time.Second,
		WithWatchBase(web.URL),
		WithTimedTextURL(web.URL+"/timedtext"),
		WithDataAPI("test-key", api.URL+"/"),
	)

	rec := document.SourceRecord{VideoID: "vid1"}
	f.Enrich(context.Background(), &rec)

	assert.Equal(t, "API title", rec.Title)
	assert.Equal(t, "API description", rec.Description)
	assert.Equal(t, "PT5M30S", rec.Duration)
	assert.Equal(t, "en", rec.Language)
}

package loader

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"dexfren/backend/internal/document"
)

var ErrInvalidVideoURL = errors.New("invalid youtube url")

var ErrNoTranscript = errors.New("no transcript available")

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([\w-]+)`),
	regexp.MustCompile(`youtube\.com/embed/([\w-]+)`),
	regexp.MustCompile(`youtube\.com/v/([\w-]+)`),
}

func ExtractVideoID(rawURL string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidVideoURL, rawURL)
}

// TranscriptOption is one attempt at fetching captions. With FirstAvailable
// set, the first listed caption track is used and translated to TranslateTo.
type TranscriptOption struct {
	Lang           string
	Kind           string
	TranslateTo    string
	FirstAvailable bool
}

func (o TranscriptOption) String() string {
	switch {
	case o.FirstAvailable:
		return "first->" + o.TranslateTo
	case o.TranslateTo != "":
		return o.Lang + "->" + o.TranslateTo
	case o.Kind != "":
		return o.Lang + "(" + o.Kind + ")"
	default:
		return o.Lang
	}
}

// DefaultTranscriptOptions are tried in order until one succeeds.
var DefaultTranscriptOptions = []TranscriptOption{
	{Lang: "en"},
	{Lang: "es"},
	{FirstAvailable: true, TranslateTo: "en"},
}

type TranscriptResult struct {
	Text     string
	Language string
}

const (
	defaultWatchBase    = "https://www.youtube.com"
	defaultTimedTextURL = "https://video.google.com/timedtext"
)

// VideoFetcher fills in video titles, descriptions and transcripts.
type VideoFetcher struct {
	client       *http.Client
	watchBase    string
	timedTextURL string
	apiKey       string
	apiEndpoint  string
	options      []TranscriptOption
}

type FetcherOption func(*VideoFetcher)

func WithWatchBase(base string) FetcherOption {
	return func(f *VideoFetcher) { f.watchBase = strings.TrimRight(base, "/") }
}

func WithTimedTextURL(u string) FetcherOption {
	return func(f *VideoFetcher) { f.timedTextURL = u }
}

// WithDataAPI enables the YouTube Data API for descriptions and durations.
// An empty endpoint keeps the public one.
func WithDataAPI(apiKey, endpoint string) FetcherOption {
	return func(f *VideoFetcher) {
		f.apiKey = apiKey
		f.apiEndpoint = endpoint
	}
}

func WithTranscriptOptions(opts ...TranscriptOption) FetcherOption {
	return func(f *VideoFetcher) { f.options = opts }
}

func NewVideoFetcher(timeout time.Duration, opts ...FetcherOption) *VideoFetcher {
	f := &VideoFetcher{
		client:       &http.Client{Timeout: timeout},
		watchBase:    defaultWatchBase,
		timedTextURL: defaultTimedTextURL,
		options:      DefaultTranscriptOptions,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enrich fills missing fields on rec. Every lookup is best effort.
func (f *VideoFetcher) Enrich(ctx context.Context, rec *document.SourceRecord) {
	id := rec.VideoID

	if f.apiKey != "" {
		if err := f.fromDataAPI(ctx, id, rec); err != nil {
			slog.WarnContext(ctx, "youtube data api lookup failed", "video_id", id, "error", err)
		}
	}
	if rec.Title == "" {
		title, err := f.OEmbedTitle(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "oembed lookup failed", "video_id", id, "error", err)
		}
		rec.Title = title
	}
	if rec.Description == "" {
		desc, err := f.ScrapeDescription(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "description scrape failed", "video_id", id, "error", err)
		}
		rec.Description = desc
	}

	tr, err := f.Transcript(ctx, id)
	if err != nil {
		slog.InfoContext(ctx, "no transcript for video", "video_id", id, "error", err)
		return
	}
	rec.Body = tr.Text
	if rec.Language == "" {
		rec.Language = tr.Language
	}
}

func (f *VideoFetcher) fromDataAPI(ctx context.Context, id string, rec *document.SourceRecord) error {
	opts := []option.ClientOption{option.WithAPIKey(f.apiKey)}
	if f.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(f.apiEndpoint), option.WithHTTPClient(f.client))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return err
	}
	resp, err := svc.Videos.List([]string{"snippet", "contentDetails"}).Id(id).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("video %s not found", id)
	}
	item := resp.Items[0]
	if item.Snippet != nil {
		fill(&rec.Title, item.Snippet.Title)
		fill(&rec.Description, item.Snippet.Description)
		fill(&rec.Language, item.Snippet.DefaultAudioLanguage)
	}
	if item.ContentDetails != nil {
		fill(&rec.Duration, item.ContentDetails.Duration)
	}
	return nil
}

func (f *VideoFetcher) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrSourceUnavailable, u, resp.StatusCode)
	}
	return resp, nil
}

func (f *VideoFetcher) OEmbedTitle(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("url", f.watchBase+"/watch?v="+id)
	q.Set("format", "json")
	resp, err := f.get(ctx, f.watchBase+"/oembed?"+q.Encode())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode oembed: %w", err)
	}
	return strings.TrimSpace(body.Title), nil
}

func (f *VideoFetcher) ScrapeDescription(ctx context.Context, id string) (string, error) {
	resp, err := f.get(ctx, f.watchBase+"/watch?v="+id)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	return firstMatch(doc, []selector{
		{css: `meta[name="description"]`, attr: "content"},
		{css: `meta[property="og:description"]`, attr: "content"},
		{css: "#description-text"},
	}), nil
}

// Transcript tries each configured option in order and returns the first
// non-empty transcript.
func (f *VideoFetcher) Transcript(ctx context.Context, id string) (TranscriptResult, error) {
	var errs []error
	for _, opt := range f.options {
		res, err := f.fetchTranscript(ctx, id, opt)
		if err == nil {
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", opt, err))
	}
	return TranscriptResult{}, errors.Join(append([]error{ErrNoTranscript}, errs...)...)
}

func (f *VideoFetcher) fetchTranscript(ctx context.Context, id string, opt TranscriptOption) (TranscriptResult, error) {
	lang, kind := opt.Lang, opt.Kind
	if opt.FirstAvailable {
		track, err := f.firstTrack(ctx, id)
		if err != nil {
			return TranscriptResult{}, err
		}
		lang, kind = track.Lang, track.Kind
	}

	q := url.Values{}
	q.Set("v", id)
	q.Set("lang", lang)
	if kind != "" {
		q.Set("kind", kind)
	}
	if opt.TranslateTo != "" && opt.TranslateTo != lang {
		q.Set("tlang", opt.TranslateTo)
	}
	resp, err := f.get(ctx, f.timedTextURL+"?"+q.Encode())
	if err != nil {
		return TranscriptResult{}, err
	}
	defer resp.Body.Close()

	var doc struct {
		Texts []string `xml:"text"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return TranscriptResult{}, fmt.Errorf("decode captions: %w", err)
	}

	lines := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		if t = strings.TrimSpace(html.UnescapeString(t)); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return TranscriptResult{}, ErrNoTranscript
	}

	language := lang
	if opt.TranslateTo != "" {
		language = opt.TranslateTo
	}
	return TranscriptResult{Text: strings.Join(lines, "\n"), Language: language}, nil
}

type captionTrack struct {
	Lang string `xml:"lang_code,attr"`
	Kind string `xml:"kind,attr"`
}

func (f *VideoFetcher) firstTrack(ctx context.Context, id string) (captionTrack, error) {
	q := url.Values{}
	q.Set("type", "list")
	q.Set("v", id)
	resp, err := f.get(ctx, f.timedTextURL+"?"+q.Encode())
	if err != nil {
		return captionTrack{}, err
	}
	defer resp.Body.Close()

	var list struct {
		Tracks []captionTrack `xml:"track"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&list); err != nil {
		return captionTrack{}, fmt.Errorf("decode track list: %w", err)
	}
	if len(list.Tracks) == 0 {
		return captionTrack{}, ErrNoTranscript
	}
	return list.Tracks[0], nil
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = strings.TrimSpace(src)
	}
}

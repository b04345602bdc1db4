package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"dexfren/backend/internal/text"
)

const userAgent = "Mozilla/5.0 (compatible; DexFrenBot/1.0; +https://dexkit.com)"

type selector struct {
	css  string
	attr string // empty means element text
}

var (
	titleSelectors = []selector{
		{css: "h1"},
		{css: `meta[property="og:title"]`, attr: "content"},
		{css: "title"},
		{css: ".page-title"},
	}
	descriptionSelectors = []selector{
		{css: `meta[name="description"]`, attr: "content"},
		{css: `meta[property="og:description"]`, attr: "content"},
		{css: ".description"},
		{css: ".summary"},
	}
	contentSelectors = []string{"main", "article", ".content", "#content", ".main-content", ".page-content"}
)

// firstMatch returns the first non-empty value among selectors, in order.
func firstMatch(doc *goquery.Document, selectors []selector) string {
	for _, s := range selectors {
		sel := doc.Find(s.css).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if s.attr != "" {
			v, _ = sel.Attr(s.attr)
		} else {
			v = sel.Text()
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Page is the extracted content of one scraped URL.
type Page struct {
	URL         string
	Title       string
	Description string
	Content     string
}

// Scraper fetches pages at a bounded rate with a per-request timeout.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewScraper paces requests at perSecond (<= 0 disables pacing).
func NewScraper(timeout time.Duration, perSecond float64) *Scraper {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Scraper{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *Scraper) Scrape(ctx context.Context, url string) (Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: %s returned %d", ErrSourceUnavailable, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	return ExtractPage(url, doc), nil
}

// ExtractPage pulls title, description and main content out of a document.
// Headings become "## " lines so the chunker sees section boundaries.
func ExtractPage(url string, doc *goquery.Document) Page {
	p := Page{
		URL:         url,
		Title:       firstMatch(doc, titleSelectors),
		Description: firstMatch(doc, descriptionSelectors),
	}

	for _, css := range contentSelectors {
		main := doc.Find(css).First()
		if main.Length() == 0 {
			continue
		}
		main.Find("script, style, nav, footer, header, aside").Remove()

		var parts []string
		main.Find("h1, h2, h3, h4, h5, h6, p, li, pre, .text").Each(func(_ int, el *goquery.Selection) {
			t := strings.TrimSpace(el.Text())
			if t == "" {
				return
			}
			if name := goquery.NodeName(el); len(name) == 2 && name[0] == 'h' {
				parts = append(parts, "\n## "+t+"\n")
				return
			}
			parts = append(parts, t)
		})
		p.Content = strings.TrimSpace(text.CleanMarkdownNoise(strings.Join(parts, "\n")))
		break
	}
	return p
}

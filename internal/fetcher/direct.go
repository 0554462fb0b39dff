package fetcher

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/amityadav/webresearch/internal/cache"
)

// Rotated to look like ordinary browser traffic
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// DirectTier fetches pages with a plain HTTP GET and extracts readable text
// from the static HTML
type DirectTier struct {
	client *http.Client
}

// NewDirectTier creates the direct fetch tier with the given timeout
func NewDirectTier(timeout time.Duration) *DirectTier {
	return &DirectTier{
		client: &http.Client{Timeout: timeout},
	}
}

func (t *DirectTier) Name() string { return cache.SourceDirect }

// Fetch GETs the URL with browser-like headers and strips page chrome
func (t *DirectTier) Fetch(ctx context.Context, url string) (*cache.PageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := extractReadableText(doc)
	if body == "" {
		return nil, fmt.Errorf("no readable content")
	}

	var author string
	if v, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
		author = strings.TrimSpace(v)
	}

	return &cache.PageRecord{URL: url, Title: title, Body: body, Author: author}, nil
}

// extractReadableText strips navigation chrome and pulls text from the main
// content region, falling back to all body paragraphs
func extractReadableText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, .sidebar, .advertisement, .ads").Remove()

	var sb strings.Builder

	selectors := []string{"article", "[role='main']", "main", ".post-content", ".article-content", ".entry-content", ".content"}
	for _, selector := range selectors {
		selection := doc.Find(selector)
		if selection.Length() > 0 {
			log.Printf("[Fetcher.Direct] Found content with selector: %s", selector)
			selection.Find("p, h1, h2, h3, li").Each(func(i int, s *goquery.Selection) {
				text := strings.TrimSpace(s.Text())
				if len(text) > 20 {
					sb.WriteString(text)
					sb.WriteString("\n\n")
				}
			})
			break
		}
	}

	if sb.Len() == 0 {
		doc.Find("body p").Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 30 {
				sb.WriteString(text)
				sb.WriteString("\n\n")
			}
		})
	}

	return strings.TrimSpace(sb.String())
}

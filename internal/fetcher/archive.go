package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/amityadav/webresearch/internal/cache"
	"github.com/microcosm-cc/bluemonday"
)

const defaultCDXAPIURL = "https://web.archive.org/web/timemap/json"

var (
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	whitespaceRe = regexp.MustCompile(`\n\s*\n+`)
)

// ArchiveTier fetches the most recent Wayback Machine snapshot of a page.
// Last resort for pages that block both direct fetches and the reader proxy.
type ArchiveTier struct {
	cdxURL    string
	client    *http.Client
	sanitizer *bluemonday.Policy
}

// NewArchiveTier creates the archive tier with the given timeout
func NewArchiveTier(timeout time.Duration) *ArchiveTier {
	return &ArchiveTier{
		cdxURL:    defaultCDXAPIURL,
		client:    &http.Client{Timeout: timeout},
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (t *ArchiveTier) Name() string { return cache.SourceArchive }

// Fetch looks up the latest snapshot via the CDX timemap, then fetches it
func (t *ArchiveTier) Fetch(ctx context.Context, pageURL string) (*cache.PageRecord, error) {
	snapshotURL, err := t.findSnapshot(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot lookup failed: %w", err)
	}
	if snapshotURL == "" {
		return nil, fmt.Errorf("no snapshot found")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot status code error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	page := string(raw)
	title := ""
	if m := titleRe.FindStringSubmatch(page); m != nil {
		title = strings.TrimSpace(m[1])
	}

	body := t.stripMarkup(page)
	return &cache.PageRecord{URL: pageURL, Title: title, Body: body}, nil
}

// findSnapshot queries the CDX timemap for the most recent HTML snapshot.
// Rows come back as [timestamp, snapshot-url, mime, status, ...] with a
// header row first.
func (t *ArchiveTier) findSnapshot(ctx context.Context, pageURL string) (string, error) {
	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("matchType", "exact")
	params.Add("filter", "statuscode:200")
	params.Add("filter", "mimetype:text/html")
	params.Set("limit", "1")
	params.Set("last", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cdxURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdx status code error: %d", resp.StatusCode)
	}

	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", fmt.Errorf("failed to decode cdx response: %w", err)
	}
	if len(rows) < 2 || len(rows[1]) < 2 {
		return "", nil
	}

	snapshot, _ := rows[1][1].(string)
	return snapshot, nil
}

// stripMarkup reduces snapshot HTML to plain text
func (t *ArchiveTier) stripMarkup(page string) string {
	text := t.sanitizer.Sanitize(page)
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

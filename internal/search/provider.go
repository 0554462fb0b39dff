package search

import (
	"context"
	"net/url"
	"strings"
)

// Result is a single search hit from any provider
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	PublishedDate string `json:"published_date,omitempty"`
}

// Provider is the interface all search providers must implement. Results
// come back in provider order; no re-ranking happens at this layer.
type Provider interface {
	// Name returns the provider identifier (e.g., "tavily", "serpapi")
	Name() string

	// Search runs one query, returning up to maxResults hits
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// NormalizeURL produces the dedupe key for a result URL: scheme and host
// lowercased, fragment dropped, trailing slash trimmed.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Dedupe drops results whose normalized URL was already seen, preserving
// provider order
func Dedupe(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		key := NormalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

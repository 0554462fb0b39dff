package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amityadav/webresearch/internal/cache"
)

const defaultJinaBaseURL = "https://r.jina.ai/"

// JinaTier fetches pages through the Jina Reader proxy, which renders JS
// and returns readable markdown. Works without an API key; a key raises
// the rate limits.
type JinaTier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewJinaTier creates the reader-proxy tier. apiKey may be empty.
func NewJinaTier(apiKey string, timeout time.Duration) *JinaTier {
	return &JinaTier{
		baseURL: defaultJinaBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *JinaTier) Name() string { return cache.SourceJina }

// Fetch proxies the URL through the reader endpoint
func (t *JinaTier) Fetch(ctx context.Context, url string) (*cache.PageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	title, body := splitReaderOutput(string(raw))
	return &cache.PageRecord{URL: url, Title: title, Body: body}, nil
}

// splitReaderOutput pulls the title out of the reader's markdown. The
// reader emits either a "Title: ..." header block or a markdown heading
// as the first line.
func splitReaderOutput(content string) (title, body string) {
	content = strings.TrimSpace(content)
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 0 {
		return "", content
	}

	first := strings.TrimSpace(lines[0])
	switch {
	case strings.HasPrefix(first, "Title:"):
		title = strings.TrimSpace(strings.TrimPrefix(first, "Title:"))
	case strings.HasPrefix(first, "#"):
		title = strings.TrimSpace(strings.TrimLeft(first, "# "))
	default:
		return "", content
	}

	if len(lines) > 1 {
		body = strings.TrimSpace(lines[1])
	}
	return title, body
}

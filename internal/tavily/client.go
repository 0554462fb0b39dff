package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/amityadav/webresearch/internal/search"
)

const defaultAPIURL = "https://api.tavily.com/search"

// Client is a Tavily Search API client
type Client struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewClient creates a new Tavily API client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: defaultAPIURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// searchRequest represents the Tavily search request payload
type searchRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth,omitempty"` // "basic" or "advanced"
	MaxResults  int    `json:"max_results,omitempty"`
}

// searchResult represents a single search result from Tavily
type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"` // Snippet
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// searchResponse represents the Tavily search response
type searchResponse struct {
	Query        string         `json:"query"`
	Results      []searchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "tavily"
}

// Search performs a search using the Tavily API
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not set")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	reqBody := searchRequest{
		Query:       query,
		APIKey:      c.apiKey,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Printf("[Tavily] Searching for: %q (max %d results)", query, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]search.Result, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		results = append(results, search.Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Content,
			PublishedDate: r.PublishedDate,
		})
	}

	log.Printf("[Tavily] Found %d results for query: %s", len(results), query)
	return results, nil
}

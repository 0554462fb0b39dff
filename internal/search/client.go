package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amityadav/webresearch/internal/limiter"
)

// ErrRetriesExhausted means every attempt against the provider failed
var ErrRetriesExhausted = errors.New("search retries exhausted")

const (
	minResults     = 1
	maxResultsCap  = 10
	initialBackoff = time.Second
)

// Client wraps a search provider with rate-limit gating and bounded
// retries. The limiter is consulted before any provider call; usage is
// tracked only after a successful one.
type Client struct {
	provider Provider
	limiter  *limiter.RateLimiter
	attempts int
	backoff  time.Duration
}

// NewClient creates a search client with the given retry budget
func NewClient(provider Provider, l *limiter.RateLimiter, attempts int) *Client {
	if attempts <= 0 {
		attempts = 3
	}
	log.Printf("[Search] Client initialized (provider=%s, attempts=%d)", provider.Name(), attempts)
	return &Client{provider: provider, limiter: l, attempts: attempts, backoff: initialBackoff}
}

// Search runs one rate-gated query. It returns limiter.ErrLimitExceeded
// without touching the provider when the budget is spent, and
// ErrRetriesExhausted once the retry budget is gone.
func (c *Client) Search(ctx context.Context, identity, query string, maxResults int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if maxResults < minResults {
		maxResults = minResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	allowed, remaining := c.limiter.CheckLimit(ctx)
	if !allowed {
		log.Printf("[Search] Denied by rate limiter (identity=%s)", identity)
		return nil, limiter.ErrLimitExceeded
	}
	log.Printf("[Search] Searching %q via %s (max %d results, %d remaining today)",
		query, c.provider.Name(), maxResults, remaining)

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		results, err := c.provider.Search(ctx, query, maxResults)
		if err == nil {
			results = Dedupe(results)
			c.limiter.TrackUsage(ctx, identity, query, len(results))
			log.Printf("[Search] Got %d results for %q", len(results), query)
			return results, nil
		}

		lastErr = err
		log.Printf("[Search] Attempt %d/%d failed: %v", attempt, c.attempts, err)

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// ProviderName reports the underlying provider
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/amityadav/webresearch/internal/cache"
)

// ErrAllTiersFailed means every fallback tier failed for a URL
var ErrAllTiersFailed = errors.New("all fetch tiers failed")

// Tier is one strategy in the ordered fallback chain
type Tier interface {
	Name() string
	Fetch(ctx context.Context, url string) (*cache.PageRecord, error)
}

// Fetcher fetches single pages through an ordered fallback chain:
// cache -> direct -> jina -> archive. The first tier to succeed wins and
// its result is written through to the cache.
type Fetcher struct {
	cache     cache.Cache
	tiers     []Tier
	bodyLimit int
	workers   int
}

// NewFetcher creates a fetcher over the given cache and tier chain
func NewFetcher(c cache.Cache, bodyLimit, workers int, tiers ...Tier) *Fetcher {
	if bodyLimit <= 0 {
		bodyLimit = 8000
	}
	if workers <= 0 {
		workers = 2
	}
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = t.Name()
	}
	log.Printf("[Fetcher] Initialized (tiers=%s, bodyLimit=%d, workers=%d)",
		strings.Join(names, ">"), bodyLimit, workers)
	return &Fetcher{cache: c, tiers: tiers, bodyLimit: bodyLimit, workers: workers}
}

// Fetch retrieves the page at url, trying each tier in order. It returns
// ErrAllTiersFailed (with per-tier detail) only when every tier failed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*cache.PageRecord, error) {
	if url == "" {
		return nil, fmt.Errorf("empty url")
	}

	if record, ok := f.cache.Get(ctx, url); ok {
		log.Printf("[Fetcher] Cache hit: %s", url)
		record.Source = cache.SourceCache
		return record, nil
	}

	var failures []string
	for _, tier := range f.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := tier.Fetch(ctx, url)
		if err != nil {
			log.Printf("[Fetcher] Tier %s failed for %s: %v", tier.Name(), url, err)
			failures = append(failures, fmt.Sprintf("%s: %v", tier.Name(), err))
			continue
		}
		if record == nil || strings.TrimSpace(record.Body) == "" {
			log.Printf("[Fetcher] Tier %s returned empty body for %s", tier.Name(), url)
			failures = append(failures, fmt.Sprintf("%s: empty body", tier.Name()))
			continue
		}

		if len(record.Body) > f.bodyLimit {
			record.Body = record.Body[:f.bodyLimit]
		}
		record.URL = url
		record.Source = tier.Name()
		record.RetrievedAt = time.Now()
		f.cache.Put(ctx, url, record)

		log.Printf("[Fetcher] Fetched %s via %s (%d chars)", url, tier.Name(), len(record.Body))
		return record, nil
	}

	return nil, fmt.Errorf("%w for %s (%s)", ErrAllTiersFailed, url, strings.Join(failures, "; "))
}

// Outcome is the per-URL result of a batch fetch
type Outcome struct {
	Record *cache.PageRecord
	Err    error
}

// FetchMultiple fetches a set of URLs through a bounded worker pool. One
// URL failing never aborts its siblings; every input URL gets an Outcome.
func (f *Fetcher) FetchMultiple(ctx context.Context, urls []string) map[string]*Outcome {
	outcomes := make(map[string]*Outcome, len(urls))
	if len(urls) == 0 {
		return outcomes
	}

	// Dedupe while preserving a single fetch per URL
	unique := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan string)

	workers := f.workers
	if workers > len(unique) {
		workers = len(unique)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				record, err := f.Fetch(ctx, url)
				mu.Lock()
				outcomes[url] = &Outcome{Record: record, Err: err}
				mu.Unlock()
			}
		}()
	}

	for _, u := range unique {
		jobs <- u
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

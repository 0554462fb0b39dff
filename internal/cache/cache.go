package cache

import (
	"context"
	"time"
)

// Fetch sources, recorded on every PageRecord so callers can tell which
// fallback tier produced the content.
const (
	SourceCache   = "cache"
	SourceDirect  = "direct"
	SourceJina    = "jina"
	SourceArchive = "archive"
)

// PageRecord is the content of a fetched web page
type PageRecord struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Source      string    `json:"source"`
}

// Cache stores fetched pages keyed by URL. Entries expire after a TTL;
// expired entries behave as absent.
type Cache interface {
	Get(ctx context.Context, url string) (*PageRecord, bool)
	Put(ctx context.Context, url string, record *PageRecord)
}

// Stats reports cache occupancy for the usage endpoint
type Stats struct {
	Size int `json:"size"`
	TTL  int `json:"ttl_seconds"`
}

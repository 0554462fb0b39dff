package limiter

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrLimitExceeded means the daily search budget is spent
var ErrLimitExceeded = errors.New("daily search limit exceeded")

// UsageRecord is one tracked search call
type UsageRecord struct {
	Identity    string
	Query       string
	ResultCount int
	At          time.Time
}

// UsageStore persists search usage. Implementations must be safe for
// concurrent use.
type UsageStore interface {
	// CountSince returns how many usages were recorded at or after t
	CountSince(ctx context.Context, t time.Time) (int, error)
	// Record appends a usage entry
	Record(ctx context.Context, rec UsageRecord) error
}

// Stats summarizes the current window for the usage endpoint
type Stats struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RateLimiter gates search calls against a daily budget. The window is the
// UTC calendar day; a limit <= 0 disables gating entirely.
type RateLimiter struct {
	store UsageStore
	limit int
}

// NewRateLimiter creates a limiter over the given store
func NewRateLimiter(store UsageStore, dailyLimit int) *RateLimiter {
	log.Printf("[Limiter] Initialized (daily limit: %d)", dailyLimit)
	return &RateLimiter{store: store, limit: dailyLimit}
}

// CheckLimit reports whether another search is allowed and how many calls
// remain in the window. A store error counts as the budget being spent, so
// a broken store cannot be used to bypass the limit.
func (l *RateLimiter) CheckLimit(ctx context.Context) (bool, int) {
	if l.limit <= 0 {
		return true, -1
	}

	used, err := l.store.CountSince(ctx, windowStart(time.Now()))
	if err != nil {
		log.Printf("[Limiter] Failed to count usage: %v", err)
		return false, 0
	}

	remaining := l.limit - used
	if remaining <= 0 {
		log.Printf("[Limiter] Daily search limit reached: %d/%d", used, l.limit)
		return false, 0
	}
	return true, remaining
}

// TrackUsage records one search call. Best-effort: a failed write is
// logged, never propagated.
func (l *RateLimiter) TrackUsage(ctx context.Context, identity, query string, resultCount int) {
	if len(query) > 500 {
		query = query[:500]
	}
	rec := UsageRecord{Identity: identity, Query: query, ResultCount: resultCount, At: time.Now()}
	if err := l.store.Record(ctx, rec); err != nil {
		log.Printf("[Limiter] Failed to record usage for %s: %v", identity, err)
	}
}

// Stats returns window usage for reporting
func (l *RateLimiter) Stats(ctx context.Context) Stats {
	now := time.Now()
	used, err := l.store.CountSince(ctx, windowStart(now))
	if err != nil {
		log.Printf("[Limiter] Failed to get usage stats: %v", err)
		used = 0
	}

	remaining := l.limit - used
	if l.limit <= 0 {
		remaining = -1
	} else if remaining < 0 {
		remaining = 0
	}
	return Stats{
		Used:      used,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   windowStart(now).Add(24 * time.Hour),
	}
}

// windowStart returns the UTC midnight opening the current window
func windowStart(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

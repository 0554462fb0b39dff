package limiter

import (
	"context"
	"sync"
	"time"
)

// MemoryUsageStore keeps usage records in memory. The default for
// single-process deployments and tests.
type MemoryUsageStore struct {
	mu      sync.Mutex
	records []UsageRecord
}

// NewMemoryUsageStore creates an empty in-memory store
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

// CountSince returns how many records were added at or after t
func (s *MemoryUsageStore) CountSince(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records {
		if !rec.At.Before(t) {
			count++
		}
	}
	return count, nil
}

// Record appends a usage entry
func (s *MemoryUsageStore) Record(_ context.Context, rec UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	s.records = append(s.records, rec)
	return nil
}

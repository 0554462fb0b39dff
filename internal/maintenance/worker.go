package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amityadav/webresearch/internal/cache"
	"github.com/amityadav/webresearch/internal/limiter"
)

// Sweeper is implemented by caches that support proactive eviction
type Sweeper interface {
	Sweep() int
	Len() int
}

// Worker handles scheduled hygiene tasks: cache sweeps and usage-stat
// logging. Correctness never depends on it; lazy TTL eviction and the
// limiter's own window math already hold without it.
type Worker struct {
	sweeper Sweeper
	limiter *limiter.RateLimiter
	cron    *cron.Cron
}

// NewWorker creates a maintenance worker. sweeper may be nil when the
// cache does its own expiry (Redis).
func NewWorker(c cache.Cache, rl *limiter.RateLimiter) *Worker {
	sweeper, _ := c.(Sweeper)
	return &Worker{
		sweeper: sweeper,
		limiter: rl,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers and starts the schedules
func (w *Worker) Start() {
	log.Println("[Maintenance] Starting schedulers...")

	if w.sweeper != nil {
		_, err := w.cron.AddFunc("0 * * * *", func() {
			removed := w.sweeper.Sweep()
			log.Printf("[Maintenance] Cache sweep removed %d expired entries (%d live)", removed, w.sweeper.Len())
		})
		if err != nil {
			log.Printf("[Maintenance] Failed to schedule cache sweep: %v", err)
		}
	}

	if w.limiter != nil {
		_, err := w.cron.AddFunc("0 0 * * *", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			stats := w.limiter.Stats(ctx)
			log.Printf("[Maintenance] Daily usage: %d/%d searches used, window resets at %s",
				stats.Used, stats.Limit, stats.ResetAt.Format(time.RFC3339))
		})
		if err != nil {
			log.Printf("[Maintenance] Failed to schedule usage report: %v", err)
		}
	}

	w.cron.Start()
	log.Println("[Maintenance] Schedulers started")
}

// Stop stops the scheduler
func (w *Worker) Stop() {
	w.cron.Stop()
	log.Println("[Maintenance] Schedulers stopped")
}

// Package cleanup provides background worker
package cleanup

import (
	"context"
	"time"

	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

// Sweeper is a cache that can drop its expired entries.
type Sweeper interface {
	Sweep() int
	Len() int
}

// Worker handles background cache cleanup operations
type Worker struct {
	caches map[string]Sweeper
	config *Config
	logger *logging.ChanneledLogger
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(caches map[string]Sweeper, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		caches: caches,
		config: config,
		logger: logger,
	}
}

// Start begins the cleanup worker routine, using the configured interval.
// It returns when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started", "interval", w.config.CleanupInterval, "verbose", w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case <-ticker.C:
			w.performCleanup()
		}
	}
}

// performCleanup sweeps every registered cache once.
func (w *Worker) performCleanup() int {
	start := time.Now()
	total := 0
	for name, cache := range w.caches {
		removed := cache.Sweep()
		total += removed
		if w.config.VerboseReporting {
			w.logger.Cache().Info("Cache sweep", "cache", name, "removed", removed, "remaining", cache.Len())
		}
	}
	if total > 0 {
		w.logger.Cache().Info("Cache cleanup completed", "removed", total, "duration", time.Since(start))
	}
	return total
}

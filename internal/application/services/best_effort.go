// Package services provides application-level orchestration services
package services

import (
	"context"
	"fmt"

	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
)

// BestEffort is the swallow-and-log lane for side effects of a primary action
// that must not depend on them. Run never returns an error and never panics.
type BestEffort struct {
	logger  *logging.ChanneledLogger
	channel logging.Channel
}

// NewBestEffort creates a lane logging on channel.
func NewBestEffort(logger *logging.ChanneledLogger, channel logging.Channel) *BestEffort {
	return &BestEffort{logger: logger, channel: channel}
}

// Run executes fn, logging and counting any error or panic under operation.
func (b *BestEffort) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BestEffortFailures.WithLabelValues(operation).Inc()
			b.logger.WithContext(ctx, b.channel).Error("Best-effort operation panicked",
				"operation", operation, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(ctx); err != nil {
		metrics.BestEffortFailures.WithLabelValues(operation).Inc()
		b.logger.WithContext(ctx, b.channel).Warn("Best-effort operation failed",
			"operation", operation, "error", err.Error())
	}
}

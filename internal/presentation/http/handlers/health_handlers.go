package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
)

// HealthHandlers reports process and database health.
type HealthHandlers struct {
	store       repositories.Store
	perfTracker *performance.Tracker
	logger      *logging.ChanneledLogger
	startedAt   time.Time
}

func NewHealthHandlers(store repositories.Store, perfTracker *performance.Tracker, logger *logging.ChanneledLogger) *HealthHandlers {
	return &HealthHandlers{store: store, perfTracker: perfTracker, logger: logger, startedAt: time.Now()}
}

// GetHealth handles GET /healthz
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	stats := h.perfTracker.GetOverallStats()
	body := gin.H{
		"status":     "ok",
		"database":   "ok",
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"operations": stats,
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.System().Error("Health check database ping failed", "error", err.Error())
		body["status"] = "degraded"
		body["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

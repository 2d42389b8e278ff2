// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/application/container"
	"github.com/mikahq/mika-go/internal/presentation/http/handlers"
	"github.com/mikahq/mika-go/internal/presentation/http/middleware"
	"github.com/mikahq/mika-go/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLogger(container.Logger))
	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	trackHandlers := handlers.NewTrackHandlers(container.TrackingService, container.Logger)
	leadHandlers := handlers.NewLeadHandlers(container.LeadService, container.AttributionService, container.Logger)
	redirectHandlers := handlers.NewRedirectHandlers(container.RedirectService, container.Logger, container.PerfTracker)
	liveHandlers := handlers.NewLiveHandlers(container.LiveHub, container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.Store, container.PerfTracker, container.Logger)

	// Operational endpoints
	r.GET("/healthz", healthHandlers.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Beacon endpoints: public, rate limited per client
	rateLimit := middleware.RateLimitMiddleware(container.RateLimiter, container.Logger)
	api.POST("/track", rateLimit, trackHandlers.PostTrack)
	api.POST("/leads", rateLimit, leadHandlers.PostLead)

	// Navigation must never be blocked, so redirects are not rate limited
	api.GET("/redirect/:leadId", redirectHandlers.GetRedirect)

	// Workspace-scoped endpoints behind bearer tokens
	admin := api.Group("")
	admin.Use(middleware.JWTAuthMiddleware(config.JWTSecret, container.Logger))
	{
		admin.GET("/leads", leadHandlers.GetLead)
		admin.PATCH("/leads/:id/stage", leadHandlers.PatchStage)
		admin.GET("/leads/:id/history", leadHandlers.GetHistory)
		admin.GET("/leads/:id/attribution", leadHandlers.GetAttribution)
		admin.GET("/live", liveHandlers.GetLive)
	}

	return r
}

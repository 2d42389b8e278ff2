// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/mikahq/mika-go/internal/application/services"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/caching/stores"
	"github.com/mikahq/mika-go/internal/infrastructure/email"
	"github.com/mikahq/mika-go/internal/infrastructure/messaging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
	"github.com/mikahq/mika-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Pipeline Services (stateless singletons)
	WorkspaceResolver  *services.WorkspaceResolver
	IdentityService    *services.IdentityService
	SessionService     *services.SessionService
	EventLogger        *services.EventLogger
	LeadService        *services.LeadService
	AttributionService *services.AttributionService
	RedirectService    *services.RedirectService
	TrackingService    *services.TrackingService

	// Infrastructure Dependencies
	DB           *database.DB
	Store        repositories.Store
	LandingPages *stores.LandingPageStore
	LiveHub      *messaging.LiveHub
	Notifier     email.Notifier
	RateLimiter  *security.RateLimiter
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
}

// NewContainer creates and wires all singleton services around an open database.
func NewContainer(db *database.DB, logger *logging.ChanneledLogger) *Container {
	return NewContainerWithNotifier(db, email.NewService(logger), logger)
}

// NewContainerWithNotifier is NewContainer with an explicit notifier.
func NewContainerWithNotifier(db *database.DB, notifier email.Notifier, logger *logging.ChanneledLogger) *Container {
	perfTracker := performance.NewTracker(256)
	landingPages := stores.NewLandingPageStore(config.LandingPageCacheTTL, logger)
	store := persistence.NewSQLStore(db, landingPages, logger)
	liveHub := messaging.NewLiveHub(logger)

	resolver := services.NewWorkspaceResolver(store, logger)
	identity := services.NewIdentityService(logger)
	sessions := services.NewSessionService(logger)
	events := services.NewEventLogger(liveHub, logger)
	leads := services.NewLeadService(store, resolver, identity, events, notifier, perfTracker, logger)

	return &Container{
		WorkspaceResolver:  resolver,
		IdentityService:    identity,
		SessionService:     sessions,
		EventLogger:        events,
		LeadService:        leads,
		AttributionService: services.NewAttributionService(store, logger),
		RedirectService:    services.NewRedirectService(store, resolver, events, logger),
		TrackingService:    services.NewTrackingService(store, resolver, identity, sessions, events, leads, perfTracker, logger),

		DB:           db,
		Store:        store,
		LandingPages: landingPages,
		LiveHub:      liveHub,
		Notifier:     notifier,
		RateLimiter:  security.NewRateLimiter(config.TrackRateLimit, config.TrackRateBurst),
		Logger:       logger,
		PerfTracker:  perfTracker,
	}
}

// Package repositories defines the repository interfaces for content entities and
// the unit of work that binds every repository to one transactional scope.
package repositories

import (
	"context"

	"github.com/mikahq/mika-go/internal/domain/entities/content"
)

type WorkspaceRepository interface {
	FindByID(ctx context.Context, id string) (*content.Workspace, error)
	Create(ctx context.Context, workspace *content.Workspace) error
}

// LandingPageRepository counters are parameterized atomic increments.
type LandingPageRepository interface {
	FindByID(ctx context.Context, id string) (*content.LandingPage, error)
	Create(ctx context.Context, page *content.LandingPage) error
	IncrementViews(ctx context.Context, workspaceID, id string) error
	IncrementLeads(ctx context.Context, workspaceID, id string) error
}

type CampaignRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*content.Campaign, error)
	Create(ctx context.Context, campaign *content.Campaign) error
	IncrementClicks(ctx context.Context, workspaceID, id string) error
	IncrementLeads(ctx context.Context, workspaceID, id string) error
}

package repositories

import (
	"context"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/user"
)

// Repositories is the set of repositories bound to one database handle,
// either the pool or an open transaction.
type Repositories struct {
	Workspaces   WorkspaceRepository
	LandingPages LandingPageRepository
	Campaigns    CampaignRepository
	Visitors     user.VisitorRepository
	Sessions     user.SessionRepository
	Leads        user.LeadRepository
	StageHistory user.StageHistoryRepository
	Events       analytics.EventRepository
}

// Store is the relational store. Repos runs statements independently;
// InTx runs fn against repositories bound to a single transaction, committing
// when fn returns nil and rolling back otherwise.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(r Repositories) error) error
	Ping(ctx context.Context) error
}

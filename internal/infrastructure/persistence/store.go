// Package persistence assembles the SQL repositories into the unit of work
// used by the application services.
package persistence

import (
	"context"
	"database/sql"

	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/caching/stores"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/analytics"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/content"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/user"
)

// NewRepositories binds every repository to q, which is either the pool or a
// transaction.
func NewRepositories(q database.Querier, pages *stores.LandingPageStore, logger *logging.ChanneledLogger) repositories.Repositories {
	return repositories.Repositories{
		Workspaces:   content.NewWorkspaceRepository(q, logger),
		LandingPages: content.NewLandingPageRepository(q, pages, logger),
		Campaigns:    content.NewCampaignRepository(q, logger),
		Visitors:     user.NewSQLVisitorRepository(q, logger),
		Sessions:     user.NewSQLSessionRepository(q, logger),
		Leads:        user.NewSQLLeadRepository(q, logger),
		StageHistory: user.NewSQLStageHistoryRepository(q, logger),
		Events:       analytics.NewSQLEventRepository(q, logger),
	}
}

// SQLStore implements repositories.Store over a database handle.
type SQLStore struct {
	db     *database.DB
	pages  *stores.LandingPageStore
	logger *logging.ChanneledLogger
	repos  repositories.Repositories
}

// NewSQLStore creates the store. pages may be nil to disable landing page caching.
func NewSQLStore(db *database.DB, pages *stores.LandingPageStore, logger *logging.ChanneledLogger) *SQLStore {
	return &SQLStore{
		db:     db,
		pages:  pages,
		logger: logger,
		repos:  NewRepositories(db.DB, pages, logger),
	}
}

// Repos returns repositories that run each statement on its own.
func (s *SQLStore) Repos() repositories.Repositories {
	return s.repos
}

// InTx runs fn against repositories bound to one transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(r repositories.Repositories) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(NewRepositories(tx, s.pages, s.logger))
	})
}

// Ping checks database reachability.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Package content provides the SQL repositories for workspaces, landing pages
// and campaigns.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/entities/content"
	"github.com/mikahq/mika-go/internal/infrastructure/caching/stores"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

type LandingPageRepository struct {
	db     database.Querier
	cache  *stores.LandingPageStore
	logger *logging.ChanneledLogger
}

// NewLandingPageRepository wires the repository. cache may be nil.
func NewLandingPageRepository(db database.Querier, cache *stores.LandingPageStore, logger *logging.ChanneledLogger) *LandingPageRepository {
	return &LandingPageRepository{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// FindByID employs a cache-first strategy. Landing pages never move between
// workspaces, so a cached entry is always safe for workspace resolution.
func (r *LandingPageRepository) FindByID(ctx context.Context, id string) (*content.LandingPage, error) {
	if r.cache != nil {
		if page, found := r.cache.Get(id); found {
			return page, nil
		}
	}

	page, err := r.loadFromDB(ctx, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	if r.cache != nil {
		r.cache.Set(page)
	}
	return page, nil
}

func (r *LandingPageRepository) loadFromDB(ctx context.Context, id string) (*content.LandingPage, error) {
	const query = `
		SELECT id, workspace_id, slug, title, views_count, leads_count, created_at
		FROM landing_pages WHERE id = ?`

	start := time.Now()
	var (
		page      content.LandingPage
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&page.ID, &page.WorkspaceID, &page.Slug, &page.Title, &page.ViewsCount, &page.LeadsCount, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load landing page", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load landing page", err)
	}
	if page.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, apperrors.Internal("failed to load landing page", fmt.Errorf("created_at: %w", err))
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), page.WorkspaceID)
	return &page, nil
}

func (r *LandingPageRepository) Create(ctx context.Context, page *content.LandingPage) error {
	const query = `
		INSERT INTO landing_pages (id, workspace_id, slug, title, views_count, leads_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		page.ID, page.WorkspaceID, page.Slug, page.Title, page.ViewsCount, page.LeadsCount, database.FormatTime(page.CreatedAt))
	if err != nil {
		r.logger.Database().Error("Landing page insert failed", "error", err.Error(), "id", page.ID)
		return apperrors.Internal("failed to create landing page", err)
	}
	r.logger.Database().Info("Landing page insert completed", "id", page.ID, "workspaceId", page.WorkspaceID, "duration", time.Since(start))
	return nil
}

func (r *LandingPageRepository) IncrementViews(ctx context.Context, workspaceID, id string) error {
	return r.increment(ctx, "views_count", workspaceID, id)
}

func (r *LandingPageRepository) IncrementLeads(ctx context.Context, workspaceID, id string) error {
	return r.increment(ctx, "leads_count", workspaceID, id)
}

func (r *LandingPageRepository) increment(ctx context.Context, column, workspaceID, id string) error {
	query := `UPDATE landing_pages SET ` + column + ` = ` + column + ` + 1 WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, workspaceID, id); err != nil {
		r.logger.Database().Error("Landing page counter update failed", "error", err.Error(), "column", column, "id", id)
		return apperrors.Internal("failed to update landing page counter", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

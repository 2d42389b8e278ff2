package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/entities/content"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

type CampaignRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

func NewCampaignRepository(db database.Querier, logger *logging.ChanneledLogger) *CampaignRepository {
	return &CampaignRepository{
		db:     db,
		logger: logger,
	}
}

func (r *CampaignRepository) FindByID(ctx context.Context, workspaceID, id string) (*content.Campaign, error) {
	const query = `
		SELECT id, workspace_id, name, source, medium, clicks_count, leads_count, created_at
		FROM campaigns WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	var (
		c              content.Campaign
		source, medium sql.NullString
		createdAt      string
	)
	err := r.db.QueryRowContext(ctx, query, workspaceID, id).Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &source, &medium, &c.ClicksCount, &c.LeadsCount, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Campaign not found", "id", id, "workspaceId", workspaceID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load campaign", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load campaign", err)
	}
	c.Source = source.String
	c.Medium = medium.String
	if c.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, apperrors.Internal("failed to load campaign", fmt.Errorf("created_at: %w", err))
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *content.Campaign) error {
	const query = `
		INSERT INTO campaigns (id, workspace_id, name, source, medium, clicks_count, leads_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.WorkspaceID, c.Name, nullIfEmpty(c.Source), nullIfEmpty(c.Medium),
		c.ClicksCount, c.LeadsCount, database.FormatTime(c.CreatedAt))
	if err != nil {
		r.logger.Database().Error("Campaign insert failed", "error", err.Error(), "id", c.ID)
		return apperrors.Internal("failed to create campaign", err)
	}
	r.logger.Database().Info("Campaign insert completed", "id", c.ID, "workspaceId", c.WorkspaceID, "duration", time.Since(start))
	return nil
}

func (r *CampaignRepository) IncrementClicks(ctx context.Context, workspaceID, id string) error {
	return r.increment(ctx, "clicks_count", workspaceID, id)
}

func (r *CampaignRepository) IncrementLeads(ctx context.Context, workspaceID, id string) error {
	return r.increment(ctx, "leads_count", workspaceID, id)
}

// increment is a no-op for campaign ids that were never registered.
func (r *CampaignRepository) increment(ctx context.Context, column, workspaceID, id string) error {
	query := `UPDATE campaigns SET ` + column + ` = ` + column + ` + 1 WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, workspaceID, id); err != nil {
		r.logger.Database().Error("Campaign counter update failed", "error", err.Error(), "column", column, "id", id)
		return apperrors.Internal("failed to update campaign counter", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

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

type WorkspaceRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

func NewWorkspaceRepository(db database.Querier, logger *logging.ChanneledLogger) *WorkspaceRepository {
	return &WorkspaceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *WorkspaceRepository) FindByID(ctx context.Context, id string) (*content.Workspace, error) {
	const query = `SELECT id, name, notify_email, created_at FROM workspaces WHERE id = ?`

	var (
		ws          content.Workspace
		notifyEmail sql.NullString
		createdAt   string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &notifyEmail, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load workspace", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load workspace", err)
	}
	ws.NotifyEmail = notifyEmail.String
	if ws.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, apperrors.Internal("failed to load workspace", fmt.Errorf("created_at: %w", err))
	}
	return &ws, nil
}

func (r *WorkspaceRepository) Create(ctx context.Context, ws *content.Workspace) error {
	const query = `INSERT INTO workspaces (id, name, notify_email, created_at) VALUES (?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, ws.ID, ws.Name, nullIfEmpty(ws.NotifyEmail), database.FormatTime(ws.CreatedAt))
	if err != nil {
		r.logger.Database().Error("Workspace insert failed", "error", err.Error(), "id", ws.ID)
		return apperrors.Internal("failed to create workspace", err)
	}
	r.logger.Database().Info("Workspace insert completed", "id", ws.ID, "duration", time.Since(start))
	return nil
}

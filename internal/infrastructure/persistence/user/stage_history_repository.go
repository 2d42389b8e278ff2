package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

// SQLStageHistoryRepository persists the lead_stage_history table.
type SQLStageHistoryRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

// NewSQLStageHistoryRepository creates a new instance of the repository.
func NewSQLStageHistoryRepository(db database.Querier, logger *logging.ChanneledLogger) *SQLStageHistoryRepository {
	return &SQLStageHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// CloseOpen stamps exited_at and the dwell time on the lead's open row.
// The duration is computed in Go so the stored value is exact to the second
// regardless of the driver's date functions.
func (r *SQLStageHistoryRepository) CloseOpen(ctx context.Context, workspaceID, leadID string, at time.Time) error {
	const selectQuery = `
		SELECT id, entered_at FROM lead_stage_history
		WHERE workspace_id = ? AND lead_id = ? AND exited_at IS NULL`
	const updateQuery = `
		UPDATE lead_stage_history SET exited_at = ?, duration_seconds = ?
		WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, selectQuery, workspaceID, leadID)
	if err != nil {
		r.logger.Database().Error("Failed to query open stage rows", "error", err.Error(), "leadId", leadID)
		return apperrors.Internal("failed to load stage history", err)
	}

	type openRow struct {
		id      string
		entered time.Time
	}
	var open []openRow
	for rows.Next() {
		var id, entered string
		if err := rows.Scan(&id, &entered); err != nil {
			rows.Close()
			return apperrors.Internal("failed to load stage history", err)
		}
		t, err := database.ParseTime(entered)
		if err != nil {
			rows.Close()
			return apperrors.Internal("failed to load stage history", fmt.Errorf("entered_at: %w", err))
		}
		open = append(open, openRow{id: id, entered: t})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperrors.Internal("failed to load stage history", err)
	}
	rows.Close()

	for _, o := range open {
		duration := int64(at.Sub(o.entered) / time.Second)
		if duration < 0 {
			duration = 0
		}
		if _, err := r.db.ExecContext(ctx, updateQuery, database.FormatTime(at), duration, workspaceID, o.id); err != nil {
			r.logger.Database().Error("Failed to close stage row", "error", err.Error(), "id", o.id, "leadId", leadID)
			return apperrors.Internal("failed to close stage history row", err)
		}
	}

	database.CheckAndLogSlowQuery(r.logger, updateQuery, time.Since(start), workspaceID)
	return nil
}

// Append inserts a new history row.
func (r *SQLStageHistoryRepository) Append(ctx context.Context, t *user.StageTransition) error {
	const query = `
		INSERT INTO lead_stage_history (id, workspace_id, lead_id, from_stage, to_stage, entered_at, exited_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var from any
	if t.FromStage != nil {
		from = string(*t.FromStage)
	}
	var duration any
	if t.DurationSeconds != nil {
		duration = *t.DurationSeconds
	}

	start := time.Now()
	r.logger.Database().Debug("Executing stage history insert", "id", t.ID, "leadId", t.LeadID, "toStage", t.ToStage)

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.WorkspaceID, t.LeadID, from, string(t.ToStage),
		database.FormatTime(t.EnteredAt), database.FormatNullTime(t.ExitedAt), duration)
	if err != nil {
		r.logger.Database().Error("Stage history insert failed", "error", err.Error(), "id", t.ID, "leadId", t.LeadID)
		return apperrors.Internal("failed to append stage history", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), t.WorkspaceID)
	return nil
}

// FindByLead returns the lead's history oldest first.
func (r *SQLStageHistoryRepository) FindByLead(ctx context.Context, workspaceID, leadID string) ([]*user.StageTransition, error) {
	const query = `
		SELECT id, workspace_id, lead_id, from_stage, to_stage, entered_at, exited_at, duration_seconds
		FROM lead_stage_history
		WHERE workspace_id = ? AND lead_id = ?
		ORDER BY entered_at ASC, rowid ASC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, workspaceID, leadID)
	if err != nil {
		r.logger.Database().Error("Failed to query stage history", "error", err.Error(), "leadId", leadID)
		return nil, apperrors.Internal("failed to load stage history", err)
	}
	defer rows.Close()

	var history []*user.StageTransition
	for rows.Next() {
		var (
			t                  user.StageTransition
			from, exited       sql.NullString
			to, entered        string
			duration           sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.LeadID, &from, &to, &entered, &exited, &duration); err != nil {
			return nil, apperrors.Internal("failed to load stage history", err)
		}
		if from.Valid {
			s := user.Stage(from.String)
			t.FromStage = &s
		}
		t.ToStage = user.Stage(to)
		if t.EnteredAt, err = database.ParseTime(entered); err != nil {
			return nil, apperrors.Internal("failed to load stage history", err)
		}
		if t.ExitedAt, err = database.ParseNullTime(exited); err != nil {
			return nil, apperrors.Internal("failed to load stage history", err)
		}
		if duration.Valid {
			d := duration.Int64
			t.DurationSeconds = &d
		}
		history = append(history, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to load stage history", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return history, nil
}

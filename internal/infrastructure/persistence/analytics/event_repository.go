// Package analytics provides the concrete SQL-based implementation of the
// append-only event stream.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

const eventColumns = `rowid, id, workspace_id, visitor_id, session_id, lead_id, landing_page_id, campaign_id,
	type, name, value, url, metadata, created_at`

// SQLEventRepository handles event persistence. There is no update or delete path.
type SQLEventRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db database.Querier, logger *logging.ChanneledLogger) *SQLEventRepository {
	return &SQLEventRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one event and fills in its storage sequence.
func (r *SQLEventRepository) Append(ctx context.Context, event *analytics.Event) error {
	const query = `
		INSERT INTO events (id, workspace_id, visitor_id, session_id, lead_id, landing_page_id, campaign_id,
		                    type, name, value, url, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperrors.Internal("failed to encode event metadata", err)
	}

	var value any
	if event.Value != nil {
		value = *event.Value
	}
	var visitorID any
	if event.VisitorID != "" {
		visitorID = event.VisitorID
	}

	start := time.Now()
	r.logger.Database().Debug("Executing event insert",
		"eventId", event.ID,
		"type", event.Type,
		"visitorId", event.VisitorID,
		"workspaceId", event.WorkspaceID)

	result, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.WorkspaceID,
		visitorID,
		database.NullString(event.SessionID),
		database.NullString(event.LeadID),
		database.NullString(event.LandingPageID),
		database.NullString(event.CampaignID),
		string(event.Type),
		nullString(event.Name),
		value,
		nullString(event.URL),
		string(metadataJSON),
		database.FormatTime(event.CreatedAt),
	)
	if err != nil {
		r.logger.Database().Error("Event insert failed",
			"error", err.Error(),
			"eventId", event.ID,
			"type", event.Type,
			"workspaceId", event.WorkspaceID)
		return apperrors.Internal("failed to append event", err)
	}
	if seq, err := result.LastInsertId(); err == nil {
		event.Seq = seq
	}

	r.logger.Database().Info("Event insert completed", "eventId", event.ID, "type", event.Type, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), event.WorkspaceID)
	return nil
}

// FindByVisitor returns the visitor's events in submission order.
func (r *SQLEventRepository) FindByVisitor(ctx context.Context, workspaceID, visitorID string) ([]*analytics.Event, error) {
	return r.findBy(ctx, "visitor_id", workspaceID, visitorID)
}

// FindBySession returns the session's events in submission order.
func (r *SQLEventRepository) FindBySession(ctx context.Context, workspaceID, sessionID string) ([]*analytics.Event, error) {
	return r.findBy(ctx, "session_id", workspaceID, sessionID)
}

// FindByLead returns the lead's events in submission order.
func (r *SQLEventRepository) FindByLead(ctx context.Context, workspaceID, leadID string) ([]*analytics.Event, error) {
	return r.findBy(ctx, "lead_id", workspaceID, leadID)
}

// findBy is only called with a fixed column name, never with caller input.
func (r *SQLEventRepository) findBy(ctx context.Context, column, workspaceID, key string) ([]*analytics.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE workspace_id = ? AND ` + column + ` = ?
		ORDER BY created_at ASC, rowid ASC`

	start := time.Now()
	r.logger.Database().Debug("Loading events", "by", column, "key", key, "workspaceId", workspaceID)

	rows, err := r.db.QueryContext(ctx, query, workspaceID, key)
	if err != nil {
		r.logger.Database().Error("Failed to query events", "error", err.Error(), "by", column, "key", key)
		return nil, apperrors.Internal("failed to load events", err)
	}
	defer rows.Close()

	var events []*analytics.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan event", "error", err.Error(), "by", column, "key", key)
			return nil, apperrors.Internal("failed to load events", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to load events", err)
	}

	r.logger.Database().Info("Events loaded", "by", column, "count", len(events), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return events, nil
}

func scanEvent(rows *sql.Rows) (*analytics.Event, error) {
	var (
		e                                         analytics.Event
		visitorID, sessionID, leadID, pageID, cmp sql.NullString
		name, url                                 sql.NullString
		value                                     sql.NullFloat64
		eventType, metadata, createdAt            string
	)

	err := rows.Scan(
		&e.Seq, &e.ID, &e.WorkspaceID, &visitorID, &sessionID, &leadID, &pageID, &cmp,
		&eventType, &name, &value, &url, &metadata, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.VisitorID = visitorID.String
	e.SessionID = database.StringPtr(sessionID)
	e.LeadID = database.StringPtr(leadID)
	e.LandingPageID = database.StringPtr(pageID)
	e.CampaignID = database.StringPtr(cmp)
	e.Type = analytics.EventType(eventType)
	e.Name = name.String
	e.URL = url.String
	if value.Valid {
		v := value.Float64
		e.Value = &v
	}

	e.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if e.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

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

const sessionColumns = `id, workspace_id, visitor_id, lead_id,
	source, medium, campaign, content, term, referrer, entry_url, exit_url,
	device_type, browser, os, country, region, city,
	page_views, event_count, max_scroll_depth, started_at, ended_at`

// SQLSessionRepository is the SQL-based implementation of the SessionRepository.
type SQLSessionRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db database.Querier, logger *logging.ChanneledLogger) *SQLSessionRepository {
	return &SQLSessionRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves a Session by its unique identifier within a workspace.
func (r *SQLSessionRepository) FindByID(ctx context.Context, workspaceID, id string) (*user.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading session by ID", "id", id, "workspaceId", workspaceID)

	session, err := scanSession(r.db.QueryRowContext(ctx, query, workspaceID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Session not found by ID", "id", id, "workspaceId", workspaceID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load session by ID", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load session", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return session, nil
}

// FindByIDAnyWorkspace resolves a session without a workspace filter.
func (r *SQLSessionRepository) FindByIDAnyWorkspace(ctx context.Context, id string) (*user.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	start := time.Now()
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to resolve session", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load session", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), session.WorkspaceID)
	return session, nil
}

// FindByVisitor returns a visitor's sessions oldest first.
func (r *SQLSessionRepository) FindByVisitor(ctx context.Context, workspaceID, visitorID string) ([]*user.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE workspace_id = ? AND visitor_id = ?
		ORDER BY started_at ASC, rowid ASC`

	start := time.Now()
	r.logger.Database().Debug("Loading sessions by visitor", "visitorId", visitorID, "workspaceId", workspaceID)

	rows, err := r.db.QueryContext(ctx, query, workspaceID, visitorID)
	if err != nil {
		r.logger.Database().Error("Failed to query sessions by visitor", "error", err.Error(), "visitorId", visitorID)
		return nil, apperrors.Internal("failed to load sessions", err)
	}
	defer rows.Close()

	var sessions []*user.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan session", "error", err.Error(), "visitorId", visitorID)
			return nil, apperrors.Internal("failed to load sessions", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to load sessions", err)
	}

	r.logger.Database().Info("Sessions loaded by visitor", "visitorId", visitorID, "count", len(sessions), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return sessions, nil
}

// Create saves a new Session.
func (r *SQLSessionRepository) Create(ctx context.Context, s *user.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing session insert", "id", s.ID, "visitorId", s.VisitorID, "workspaceId", s.WorkspaceID)

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.WorkspaceID,
		s.VisitorID,
		database.NullString(s.LeadID),
		nullIfEmpty(s.Touch.Source),
		nullIfEmpty(s.Touch.Medium),
		nullIfEmpty(s.Touch.Campaign),
		nullIfEmpty(s.Touch.Content),
		nullIfEmpty(s.Touch.Term),
		nullIfEmpty(s.Touch.Referrer),
		nullIfEmpty(s.EntryURL),
		nullIfEmpty(s.ExitURL),
		nullIfEmpty(s.Device.Type),
		nullIfEmpty(s.Device.Browser),
		nullIfEmpty(s.Device.OS),
		nullIfEmpty(s.Geo.Country),
		nullIfEmpty(s.Geo.Region),
		nullIfEmpty(s.Geo.City),
		s.PageViews,
		s.EventCount,
		s.MaxScrollDepth,
		database.FormatTime(s.StartedAt),
		database.FormatTime(s.EndedAt),
	)
	if err != nil {
		r.logger.Database().Error("Session insert failed", "error", err.Error(), "id", s.ID)
		return apperrors.Internal("failed to create session", err)
	}

	r.logger.Database().Info("Session insert completed", "id", s.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), s.WorkspaceID)
	return nil
}

// RecordActivity applies one event to the session counters in a single
// statement. Scroll depth only ever grows.
func (r *SQLSessionRepository) RecordActivity(ctx context.Context, workspaceID, id string, a user.SessionActivity) error {
	const query = `
		UPDATE sessions
		SET event_count = event_count + 1,
		    page_views = page_views + ?,
		    max_scroll_depth = MAX(max_scroll_depth, ?),
		    exit_url = COALESCE(?, exit_url),
		    ended_at = MAX(ended_at, ?)
		WHERE workspace_id = ? AND id = ?`

	pageViews := 0
	if a.PageView {
		pageViews = 1
	}
	scroll := 0
	if a.ScrollDepth != nil {
		scroll = *a.ScrollDepth
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		pageViews, scroll, nullIfEmpty(a.URL), database.FormatTime(a.At), workspaceID, id)
	if err != nil {
		r.logger.Database().Error("Session activity update failed", "error", err.Error(), "id", id, "workspaceId", workspaceID)
		return apperrors.Internal("failed to update session", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

// AttachLead marks the session as belonging to an identified lead.
func (r *SQLSessionRepository) AttachLead(ctx context.Context, workspaceID, sessionID, leadID string) error {
	const query = `UPDATE sessions SET lead_id = ? WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, leadID, workspaceID, sessionID); err != nil {
		r.logger.Database().Error("Session lead link failed", "error", err.Error(), "sessionId", sessionID, "leadId", leadID)
		return apperrors.Internal("failed to link session", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*user.Session, error) {
	var (
		s                                       user.Session
		leadID                                  sql.NullString
		source, medium, campaign, content, term sql.NullString
		referrer, entryURL, exitURL             sql.NullString
		deviceType, browser, os                 sql.NullString
		country, region, city                   sql.NullString
		startedAt, endedAt                      string
	)

	err := row.Scan(
		&s.ID, &s.WorkspaceID, &s.VisitorID, &leadID,
		&source, &medium, &campaign, &content, &term, &referrer, &entryURL, &exitURL,
		&deviceType, &browser, &os, &country, &region, &city,
		&s.PageViews, &s.EventCount, &s.MaxScrollDepth, &startedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	s.LeadID = database.StringPtr(leadID)
	s.Touch.Source = source.String
	s.Touch.Medium = medium.String
	s.Touch.Campaign = campaign.String
	s.Touch.Content = content.String
	s.Touch.Term = term.String
	s.Touch.Referrer = referrer.String
	s.EntryURL = entryURL.String
	s.ExitURL = exitURL.String
	s.Device = user.Device{Type: deviceType.String, Browser: browser.String, OS: os.String}
	s.Geo = user.Geo{Country: country.String, Region: region.String, City: city.String}

	if s.StartedAt, err = database.ParseTime(startedAt); err != nil {
		return nil, fmt.Errorf("started_at: %w", err)
	}
	if s.EndedAt, err = database.ParseTime(endedAt); err != nil {
		return nil, fmt.Errorf("ended_at: %w", err)
	}
	return &s, nil
}

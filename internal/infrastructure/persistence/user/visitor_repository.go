// Package user provides the concrete SQL-based implementations of
// the user domain repositories (Visitor, Session, Lead, StageHistory).
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

const visitorColumns = `id, workspace_id, cookie_id, fingerprint_hash,
	first_source, first_medium, first_campaign, first_content, first_term, first_referrer,
	converted_to_lead_id, converted_at, first_seen_at, last_seen_at`

// SQLVisitorRepository is the SQL-based implementation of the VisitorRepository.
type SQLVisitorRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

// NewSQLVisitorRepository creates a new instance of the repository.
func NewSQLVisitorRepository(db database.Querier, logger *logging.ChanneledLogger) *SQLVisitorRepository {
	return &SQLVisitorRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves a Visitor by its unique identifier within a workspace.
func (r *SQLVisitorRepository) FindByID(ctx context.Context, workspaceID, id string) (*user.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE workspace_id = ? AND id = ?`
	return r.findOne(ctx, query, workspaceID, "id", id)
}

// FindByCookieID retrieves a Visitor by the first-party cookie the beacon stores.
func (r *SQLVisitorRepository) FindByCookieID(ctx context.Context, workspaceID, cookieID string) (*user.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE workspace_id = ? AND cookie_id = ?`
	return r.findOne(ctx, query, workspaceID, "cookieId", cookieID)
}

// FindByFingerprint retrieves a Visitor by its client-side fingerprint hash.
func (r *SQLVisitorRepository) FindByFingerprint(ctx context.Context, workspaceID, fingerprintHash string) (*user.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE workspace_id = ? AND fingerprint_hash = ?`
	return r.findOne(ctx, query, workspaceID, "fingerprintHash", fingerprintHash)
}

func (r *SQLVisitorRepository) findOne(ctx context.Context, query, workspaceID, keyName, key string) (*user.Visitor, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading visitor", "workspaceId", workspaceID, keyName, key)

	visitor, err := scanVisitor(r.db.QueryRowContext(ctx, query, workspaceID, key))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Visitor not found", "workspaceId", workspaceID, keyName, key)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load visitor", "error", err.Error(), "workspaceId", workspaceID, keyName, key)
		return nil, apperrors.Internal("failed to load visitor", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return visitor, nil
}

// Create saves a new Visitor. A duplicate cookie or fingerprint in the same
// workspace is reported as a conflict so the caller can re-resolve.
func (r *SQLVisitorRepository) Create(ctx context.Context, v *user.Visitor) error {
	query := `INSERT INTO visitors (` + visitorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing visitor insert", "id", v.ID, "workspaceId", v.WorkspaceID)

	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.WorkspaceID,
		database.NullString(v.CookieID),
		database.NullString(v.FingerprintHash),
		nullIfEmpty(v.FirstTouch.Source),
		nullIfEmpty(v.FirstTouch.Medium),
		nullIfEmpty(v.FirstTouch.Campaign),
		nullIfEmpty(v.FirstTouch.Content),
		nullIfEmpty(v.FirstTouch.Term),
		nullIfEmpty(v.FirstTouch.Referrer),
		database.NullString(v.ConvertedToLeadID),
		database.FormatNullTime(v.ConvertedAt),
		database.FormatTime(v.FirstSeenAt),
		database.FormatTime(v.LastSeenAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			r.logger.Database().Debug("Visitor insert lost identity race", "id", v.ID, "workspaceId", v.WorkspaceID)
			return apperrors.Conflict(apperrors.CodeDuplicateVisitor, "visitor identity already exists", err)
		}
		r.logger.Database().Error("Visitor insert failed", "error", err.Error(), "id", v.ID, "workspaceId", v.WorkspaceID)
		return apperrors.Internal("failed to create visitor", err)
	}

	r.logger.Database().Info("Visitor insert completed", "id", v.ID, "workspaceId", v.WorkspaceID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), v.WorkspaceID)
	return nil
}

// TouchLastSeen advances last_seen_at. It never moves the timestamp backwards.
func (r *SQLVisitorRepository) TouchLastSeen(ctx context.Context, workspaceID, id string, seenAt time.Time) error {
	const query = `UPDATE visitors SET last_seen_at = MAX(last_seen_at, ?) WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, database.FormatTime(seenAt), workspaceID, id); err != nil {
		r.logger.Database().Error("Visitor last-seen update failed", "error", err.Error(), "id", id, "workspaceId", workspaceID)
		return apperrors.Internal("failed to update visitor", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

// LinkToLead records the conversion back-reference on first conversion only.
// Repeating the call is safe: the same lead is a no-op, and a different lead
// leaves the original back-reference and converted_at untouched rather than
// overwriting them.
func (r *SQLVisitorRepository) LinkToLead(ctx context.Context, workspaceID, visitorID, leadID string, at time.Time) error {
	const query = `
		UPDATE visitors
		SET converted_to_lead_id = ?, converted_at = ?
		WHERE workspace_id = ? AND id = ? AND converted_to_lead_id IS NULL`

	start := time.Now()
	r.logger.Database().Debug("Linking visitor to lead", "visitorId", visitorID, "leadId", leadID, "workspaceId", workspaceID)

	if _, err := r.db.ExecContext(ctx, query, leadID, database.FormatTime(at), workspaceID, visitorID); err != nil {
		r.logger.Database().Error("Visitor link failed", "error", err.Error(), "visitorId", visitorID, "leadId", leadID)
		return apperrors.Internal("failed to link visitor", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

func scanVisitor(row *sql.Row) (*user.Visitor, error) {
	var (
		v                                       user.Visitor
		cookieID, fingerprint, convertedTo      sql.NullString
		source, medium, campaign, content, term sql.NullString
		referrer, convertedAt                   sql.NullString
		firstSeen, lastSeen                     string
	)

	err := row.Scan(
		&v.ID, &v.WorkspaceID, &cookieID, &fingerprint,
		&source, &medium, &campaign, &content, &term, &referrer,
		&convertedTo, &convertedAt, &firstSeen, &lastSeen,
	)
	if err != nil {
		return nil, err
	}

	v.CookieID = database.StringPtr(cookieID)
	v.FingerprintHash = database.StringPtr(fingerprint)
	v.ConvertedToLeadID = database.StringPtr(convertedTo)
	v.FirstTouch.Source = source.String
	v.FirstTouch.Medium = medium.String
	v.FirstTouch.Campaign = campaign.String
	v.FirstTouch.Content = content.String
	v.FirstTouch.Term = term.String
	v.FirstTouch.Referrer = referrer.String

	if v.ConvertedAt, err = database.ParseNullTime(convertedAt); err != nil {
		return nil, fmt.Errorf("converted_at: %w", err)
	}
	if v.FirstSeenAt, err = database.ParseTime(firstSeen); err != nil {
		return nil, fmt.Errorf("first_seen_at: %w", err)
	}
	if v.LastSeenAt, err = database.ParseTime(lastSeen); err != nil {
		return nil, fmt.Errorf("last_seen_at: %w", err)
	}
	return &v, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

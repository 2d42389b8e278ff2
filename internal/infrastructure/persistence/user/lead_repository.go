package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

const leadColumns = `id, workspace_id, visitor_id, email, name, phone, stage, stage_changed_at,
	behavior_score, demographic_score, total_score,
	first_source, first_medium, first_campaign, last_source, last_medium, last_campaign,
	lifetime_value, purchase_count, custom_fields, tags, captured_via, created_at, updated_at`

// SQLLeadRepository is the SQL-based implementation of the LeadRepository.
type SQLLeadRepository struct {
	db     database.Querier
	logger *logging.ChanneledLogger
}

// NewSQLLeadRepository creates a new instance of the repository.
func NewSQLLeadRepository(db database.Querier, logger *logging.ChanneledLogger) *SQLLeadRepository {
	return &SQLLeadRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves a Lead by its unique identifier within a workspace.
func (r *SQLLeadRepository) FindByID(ctx context.Context, workspaceID, id string) (*user.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading lead by ID", "id", id, "workspaceId", workspaceID)

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, workspaceID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Lead not found by ID", "id", id, "workspaceId", workspaceID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load lead by ID", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load lead", err)
	}

	r.logger.Database().Info("Lead loaded by ID", "id", id, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return lead, nil
}

// FindByIDAnyWorkspace resolves a lead without a workspace filter.
func (r *SQLLeadRepository) FindByIDAnyWorkspace(ctx context.Context, id string) (*user.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = ?`

	start := time.Now()
	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to resolve lead", "error", err.Error(), "id", id)
		return nil, apperrors.Internal("failed to load lead", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), lead.WorkspaceID)
	return lead, nil
}

// FindByEmail retrieves a Lead by its normalized email address.
func (r *SQLLeadRepository) FindByEmail(ctx context.Context, workspaceID, email string) (*user.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE workspace_id = ? AND email = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading lead by email", "email", logging.MaskEmail(email), "workspaceId", workspaceID)

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, workspaceID, email))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Lead not found by email", "email", logging.MaskEmail(email), "workspaceId", workspaceID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load lead by email", "error", err.Error(), "email", logging.MaskEmail(email))
		return nil, apperrors.Internal("failed to load lead", err)
	}

	r.logger.Database().Info("Lead loaded by email", "leadId", lead.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return lead, nil
}

// Create saves a new Lead. A duplicate email in the workspace is a conflict.
func (r *SQLLeadRepository) Create(ctx context.Context, lead *user.Lead) error {
	query := `INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	customFields, tags, err := encodeLeadJSON(lead)
	if err != nil {
		return apperrors.Internal("failed to encode lead", err)
	}

	start := time.Now()
	r.logger.Database().Debug("Executing lead insert", "id", lead.ID, "workspaceId", lead.WorkspaceID)

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.WorkspaceID,
		database.NullString(lead.VisitorID),
		lead.Email,
		nullIfEmpty(lead.Name),
		nullIfEmpty(lead.Phone),
		string(lead.Stage),
		database.FormatTime(lead.StageChangedAt),
		lead.BehaviorScore,
		lead.DemographicScore,
		lead.TotalScore,
		nullIfEmpty(lead.FirstSource),
		nullIfEmpty(lead.FirstMedium),
		nullIfEmpty(lead.FirstCampaign),
		nullIfEmpty(lead.LastSource),
		nullIfEmpty(lead.LastMedium),
		nullIfEmpty(lead.LastCampaign),
		lead.LifetimeValue,
		lead.PurchaseCount,
		customFields,
		tags,
		nullIfEmpty(lead.CapturedVia),
		database.FormatTime(lead.CreatedAt),
		database.FormatTime(lead.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			r.logger.Database().Debug("Lead insert lost email race", "id", lead.ID, "workspaceId", lead.WorkspaceID)
			return apperrors.Conflict(apperrors.CodeDuplicateLead, "lead email already exists", err)
		}
		r.logger.Database().Error("Lead insert failed", "error", err.Error(), "id", lead.ID)
		return apperrors.Internal("failed to create lead", err)
	}

	r.logger.Database().Info("Lead insert completed", "id", lead.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), lead.WorkspaceID)
	return nil
}

// Update writes the mutable profile columns of an existing Lead. First touch,
// email and creation time are never rewritten.
func (r *SQLLeadRepository) Update(ctx context.Context, lead *user.Lead) error {
	const query = `
		UPDATE leads
		SET visitor_id = ?, name = ?, phone = ?,
		    behavior_score = ?, demographic_score = ?, total_score = ?,
		    last_source = ?, last_medium = ?, last_campaign = ?,
		    custom_fields = ?, tags = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?`

	customFields, tags, err := encodeLeadJSON(lead)
	if err != nil {
		return apperrors.Internal("failed to encode lead", err)
	}

	start := time.Now()
	r.logger.Database().Debug("Executing lead update", "id", lead.ID, "workspaceId", lead.WorkspaceID)

	_, err = r.db.ExecContext(ctx, query,
		database.NullString(lead.VisitorID),
		nullIfEmpty(lead.Name),
		nullIfEmpty(lead.Phone),
		lead.BehaviorScore,
		lead.DemographicScore,
		lead.TotalScore,
		nullIfEmpty(lead.LastSource),
		nullIfEmpty(lead.LastMedium),
		nullIfEmpty(lead.LastCampaign),
		customFields,
		tags,
		database.FormatTime(lead.UpdatedAt),
		lead.WorkspaceID,
		lead.ID,
	)
	if err != nil {
		r.logger.Database().Error("Lead update failed", "error", err.Error(), "id", lead.ID)
		return apperrors.Internal("failed to update lead", err)
	}

	r.logger.Database().Info("Lead update completed", "id", lead.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), lead.WorkspaceID)
	return nil
}

// UpdateLastTouch overwrites the last-touch triple.
func (r *SQLLeadRepository) UpdateLastTouch(ctx context.Context, workspaceID, id string, t attribution.Touch, at time.Time) error {
	const query = `
		UPDATE leads
		SET last_source = ?, last_medium = ?, last_campaign = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		nullIfEmpty(t.Source), nullIfEmpty(t.Medium), nullIfEmpty(t.Campaign),
		database.FormatTime(at), workspaceID, id)
	if err != nil {
		r.logger.Database().Error("Lead last-touch update failed", "error", err.Error(), "id", id)
		return apperrors.Internal("failed to update lead", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

// UpdateStage sets the current stage and its change time.
func (r *SQLLeadRepository) UpdateStage(ctx context.Context, workspaceID, id string, stage user.Stage, at time.Time) error {
	const query = `
		UPDATE leads SET stage = ?, stage_changed_at = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	ts := database.FormatTime(at)
	if _, err := r.db.ExecContext(ctx, query, string(stage), ts, ts, workspaceID, id); err != nil {
		r.logger.Database().Error("Lead stage update failed", "error", err.Error(), "id", id, "stage", stage)
		return apperrors.Internal("failed to update lead stage", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

// RecordPurchase adds amount to lifetime value and bumps the purchase count.
func (r *SQLLeadRepository) RecordPurchase(ctx context.Context, workspaceID, id string, amount float64, at time.Time) error {
	const query = `
		UPDATE leads
		SET lifetime_value = lifetime_value + ?, purchase_count = purchase_count + 1, updated_at = ?
		WHERE workspace_id = ? AND id = ?`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, amount, database.FormatTime(at), workspaceID, id); err != nil {
		r.logger.Database().Error("Lead purchase update failed", "error", err.Error(), "id", id)
		return apperrors.Internal("failed to record purchase", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), workspaceID)
	return nil
}

func encodeLeadJSON(lead *user.Lead) (string, string, error) {
	fields := lead.CustomFields
	if fields == nil {
		fields = map[string]any{}
	}
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("custom_fields: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("tags: %w", err)
	}
	return string(fieldsJSON), string(tagsJSON), nil
}

func scanLead(row rowScanner) (*user.Lead, error) {
	var (
		lead                                      user.Lead
		visitorID, name, phone, capturedVia       sql.NullString
		firstSource, firstMedium, firstCampaign   sql.NullString
		lastSource, lastMedium, lastCampaign      sql.NullString
		stage, stageChanged, createdAt, updatedAt string
		customFields, tags                        string
	)

	err := row.Scan(
		&lead.ID, &lead.WorkspaceID, &visitorID, &lead.Email, &name, &phone, &stage, &stageChanged,
		&lead.BehaviorScore, &lead.DemographicScore, &lead.TotalScore,
		&firstSource, &firstMedium, &firstCampaign, &lastSource, &lastMedium, &lastCampaign,
		&lead.LifetimeValue, &lead.PurchaseCount, &customFields, &tags, &capturedVia, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.VisitorID = database.StringPtr(visitorID)
	lead.Name = name.String
	lead.Phone = phone.String
	lead.Stage = user.Stage(stage)
	lead.FirstSource = firstSource.String
	lead.FirstMedium = firstMedium.String
	lead.FirstCampaign = firstCampaign.String
	lead.LastSource = lastSource.String
	lead.LastMedium = lastMedium.String
	lead.LastCampaign = lastCampaign.String
	lead.CapturedVia = capturedVia.String

	lead.CustomFields = map[string]any{}
	if err := json.Unmarshal([]byte(customFields), &lead.CustomFields); err != nil {
		return nil, fmt.Errorf("custom_fields: %w", err)
	}
	lead.Tags = []string{}
	if err := json.Unmarshal([]byte(tags), &lead.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}

	if lead.StageChangedAt, err = database.ParseTime(stageChanged); err != nil {
		return nil, fmt.Errorf("stage_changed_at: %w", err)
	}
	if lead.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if lead.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &lead, nil
}

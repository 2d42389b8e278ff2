// Package database provides schema creation for the tracking store
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	persistence "github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
// Every statement is idempotent.
func (tc *TableCreator) CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// SeedDefaultWorkspace idempotently creates a "default" workspace with one landing
// page so a fresh install can receive beacon traffic immediately.
func (tc *TableCreator) SeedDefaultWorkspace(ctx context.Context, db *sql.DB) error {
	var exists bool
	err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM workspaces WHERE id = 'default')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for default workspace: %w", err)
	}
	if exists {
		return nil
	}

	now := persistence.FormatTime(time.Now())
	if _, err := db.ExecContext(ctx, `INSERT INTO workspaces (id, name, created_at) VALUES ('default', 'Default', ?)`, now); err != nil {
		return fmt.Errorf("failed to insert default workspace: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO landing_pages (id, workspace_id, slug, title, created_at) VALUES (?, 'default', 'home', 'Home', ?)`,
		security.GenerateULID(), now)
	if err != nil {
		return fmt.Errorf("failed to insert default landing page: %w", err)
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (id TEXT PRIMARY KEY, name TEXT NOT NULL, notify_email TEXT, created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS landing_pages (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL REFERENCES workspaces(id), slug TEXT NOT NULL, title TEXT NOT NULL DEFAULT '', views_count INTEGER NOT NULL DEFAULT 0, leads_count INTEGER NOT NULL DEFAULT 0, created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS campaigns (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL REFERENCES workspaces(id), name TEXT NOT NULL, source TEXT, medium TEXT, clicks_count INTEGER NOT NULL DEFAULT 0, leads_count INTEGER NOT NULL DEFAULT 0, created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS visitors (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, cookie_id TEXT, fingerprint_hash TEXT, first_source TEXT, first_medium TEXT, first_campaign TEXT, first_content TEXT, first_term TEXT, first_referrer TEXT, converted_to_lead_id TEXT, converted_at TEXT, first_seen_at TEXT NOT NULL, last_seen_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, visitor_id TEXT NOT NULL REFERENCES visitors(id), lead_id TEXT, source TEXT, medium TEXT, campaign TEXT, content TEXT, term TEXT, referrer TEXT, entry_url TEXT, exit_url TEXT, device_type TEXT, browser TEXT, os TEXT, country TEXT, region TEXT, city TEXT, page_views INTEGER NOT NULL DEFAULT 0, event_count INTEGER NOT NULL DEFAULT 0, max_scroll_depth INTEGER NOT NULL DEFAULT 0, started_at TEXT NOT NULL, ended_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS leads (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, visitor_id TEXT, email TEXT NOT NULL, name TEXT, phone TEXT, stage TEXT NOT NULL, stage_changed_at TEXT NOT NULL, behavior_score INTEGER NOT NULL DEFAULT 0, demographic_score INTEGER NOT NULL DEFAULT 0, total_score INTEGER NOT NULL DEFAULT 0, first_source TEXT, first_medium TEXT, first_campaign TEXT, last_source TEXT, last_medium TEXT, last_campaign TEXT, lifetime_value REAL NOT NULL DEFAULT 0, purchase_count INTEGER NOT NULL DEFAULT 0, custom_fields TEXT NOT NULL DEFAULT '{}', tags TEXT NOT NULL DEFAULT '[]', captured_via TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS events (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, visitor_id TEXT, session_id TEXT, lead_id TEXT, landing_page_id TEXT, campaign_id TEXT, type TEXT NOT NULL, name TEXT, value REAL, url TEXT, metadata TEXT NOT NULL DEFAULT '{}', created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS lead_stage_history (id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, lead_id TEXT NOT NULL REFERENCES leads(id), from_stage TEXT, to_stage TEXT NOT NULL, entered_at TEXT NOT NULL, exited_at TEXT, duration_seconds INTEGER)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_landing_pages_workspace ON landing_pages(workspace_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_workspace ON campaigns(workspace_id, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_workspace_cookie ON visitors(workspace_id, cookie_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_workspace_fingerprint ON visitors(workspace_id, fingerprint_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_visitors_workspace_lead ON visitors(workspace_id, converted_to_lead_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_workspace_visitor ON sessions(workspace_id, visitor_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_workspace_lead ON sessions(workspace_id, lead_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_workspace_email ON leads(workspace_id, email)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_workspace_stage ON leads(workspace_id, stage)`,
	`CREATE INDEX IF NOT EXISTS idx_events_workspace_visitor ON events(workspace_id, visitor_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_workspace_session ON events(workspace_id, session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_workspace_lead ON events(workspace_id, lead_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_workspace_type ON events(workspace_id, type, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_history_workspace_lead ON lead_stage_history(workspace_id, lead_id, entered_at)`,
}

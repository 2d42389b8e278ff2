// Package testdb opens throwaway in-memory SQLite databases carrying the
// production schema, for repository, service and handler tests.
package testdb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	schema "github.com/mikahq/mika-go/internal/infrastructure/database"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
)

var counter atomic.Int64

// Open returns a fresh database closed at test cleanup. The pool holds a
// single connection so every statement sees the same in-memory database.
func Open(t testing.TB) *database.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, counter.Add(1))

	db, err := database.NewConnectionWithLogger(context.Background(), "sqlite3", dsn,
		database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, logging.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, schema.NewTableCreator().CreateSchema(context.Background(), db.DB))
	return db
}

// SeedWorkspace inserts a workspace.
func SeedWorkspace(t testing.TB, db *database.DB, id, notifyEmail string) {
	t.Helper()
	var notify any
	if notifyEmail != "" {
		notify = notifyEmail
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO workspaces (id, name, notify_email, created_at) VALUES (?, ?, ?, ?)`,
		id, "Workspace "+id, notify, database.FormatTime(time.Now()))
	require.NoError(t, err)
}

// SeedLandingPage inserts a landing page into workspaceID.
func SeedLandingPage(t testing.TB, db *database.DB, workspaceID, id string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO landing_pages (id, workspace_id, slug, title, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, workspaceID, id, "Page "+id, database.FormatTime(time.Now()))
	require.NoError(t, err)
}

// SeedCampaign inserts a campaign into workspaceID.
func SeedCampaign(t testing.TB, db *database.DB, workspaceID, id, source, medium string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO campaigns (id, workspace_id, name, source, medium, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, workspaceID, "Campaign "+id, source, medium, database.FormatTime(time.Now()))
	require.NoError(t, err)
}

// Count returns SELECT COUNT(*) FROM table WHERE where.
func Count(t testing.TB, db *database.DB, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

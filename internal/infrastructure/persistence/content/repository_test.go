package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/infrastructure/caching/stores"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

func TestCampaignCounters(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	testdb.SeedWorkspace(t, db, "ws1", "")
	testdb.SeedCampaign(t, db, "ws1", "c1", "google", "cpc")
	repo := NewCampaignRepository(db.DB, logging.NewDiscardLogger())

	require.NoError(t, repo.IncrementClicks(ctx, "ws1", "c1"))
	require.NoError(t, repo.IncrementClicks(ctx, "ws1", "c1"))
	require.NoError(t, repo.IncrementLeads(ctx, "ws1", "c1"))
	require.NoError(t, repo.IncrementClicks(ctx, "ws2", "c1"), "other workspaces do not match any row")

	got, err := repo.FindByID(ctx, "ws1", "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ClicksCount)
	assert.Equal(t, int64(1), got.LeadsCount)
	assert.Equal(t, "google", got.Source)

	missing, err := repo.FindByID(ctx, "ws2", "c1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLandingPageRepositoryUsesCache(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	testdb.SeedWorkspace(t, db, "ws1", "")
	testdb.SeedLandingPage(t, db, "ws1", "lp1")

	logger := logging.NewDiscardLogger()
	cache := stores.NewLandingPageStore(time.Minute, logger)
	repo := NewLandingPageRepository(db.DB, cache, logger)

	page, err := repo.FindByID(ctx, "lp1")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "ws1", page.WorkspaceID)
	assert.Equal(t, 1, cache.Len())

	_, err = db.ExecContext(ctx, `DELETE FROM landing_pages WHERE id = ?`, "lp1")
	require.NoError(t, err)
	cached, err := repo.FindByID(ctx, "lp1")
	require.NoError(t, err)
	require.NotNil(t, cached, "second lookup is served from cache")

	missing, err := repo.FindByID(ctx, "lp-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkspaceRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	testdb.SeedWorkspace(t, db, "ws1", "owner@example.com")
	repo := NewWorkspaceRepository(db.DB, logging.NewDiscardLogger())

	ws, err := repo.FindByID(ctx, "ws1")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "owner@example.com", ws.NotifyEmail)
}

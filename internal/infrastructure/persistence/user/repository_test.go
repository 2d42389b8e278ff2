package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

var t0 = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestVisitorRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewSQLVisitorRepository(db.DB, logging.NewDiscardLogger())

	visitor := &user.Visitor{
		ID:          "v1",
		WorkspaceID: "ws1",
		CookieID:    strPtr("c1"),
		FirstTouch:  attribution.Touch{Source: "google", Medium: "cpc", Referrer: "https://www.google.com"},
		FirstSeenAt: t0,
		LastSeenAt:  t0,
	}
	require.NoError(t, repo.Create(ctx, visitor))

	t.Run("lookup by cookie", func(t *testing.T) {
		got, err := repo.FindByCookieID(ctx, "ws1", "c1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "v1", got.ID)
		assert.Equal(t, visitor.FirstTouch, got.FirstTouch)
		assert.True(t, got.FirstSeenAt.Equal(t0))
	})

	t.Run("cookie is scoped to workspace", func(t *testing.T) {
		got, err := repo.FindByCookieID(ctx, "ws2", "c1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate cookie is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &user.Visitor{ID: "v2", WorkspaceID: "ws1", CookieID: strPtr("c1"), FirstSeenAt: t0, LastSeenAt: t0})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("visitors without cookie may coexist", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &user.Visitor{ID: "v3", WorkspaceID: "ws1", FingerprintHash: strPtr("fp3"), FirstSeenAt: t0, LastSeenAt: t0}))
		require.NoError(t, repo.Create(ctx, &user.Visitor{ID: "v4", WorkspaceID: "ws1", FingerprintHash: strPtr("fp4"), FirstSeenAt: t0, LastSeenAt: t0}))
	})

	t.Run("last seen never moves backwards", func(t *testing.T) {
		require.NoError(t, repo.TouchLastSeen(ctx, "ws1", "v1", t0.Add(time.Hour)))
		require.NoError(t, repo.TouchLastSeen(ctx, "ws1", "v1", t0.Add(time.Minute)))
		got, err := repo.FindByID(ctx, "ws1", "v1")
		require.NoError(t, err)
		assert.True(t, got.LastSeenAt.Equal(t0.Add(time.Hour)))
	})

	t.Run("first conversion wins", func(t *testing.T) {
		require.NoError(t, repo.LinkToLead(ctx, "ws1", "v1", "lead-a", t0))
		require.NoError(t, repo.LinkToLead(ctx, "ws1", "v1", "lead-b", t0.Add(time.Hour)))
		got, err := repo.FindByID(ctx, "ws1", "v1")
		require.NoError(t, err)
		require.NotNil(t, got.ConvertedToLeadID)
		assert.Equal(t, "lead-a", *got.ConvertedToLeadID)
		require.NotNil(t, got.ConvertedAt)
		assert.True(t, got.ConvertedAt.Equal(t0), "a later conversion does not move converted_at")

		require.NoError(t, repo.LinkToLead(ctx, "ws1", "v1", "lead-a", t0.Add(2*time.Hour)))
		got, err = repo.FindByID(ctx, "ws1", "v1")
		require.NoError(t, err)
		assert.Equal(t, "lead-a", *got.ConvertedToLeadID)
		assert.True(t, got.ConvertedAt.Equal(t0), "re-linking the same lead is a no-op")
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	logger := logging.NewDiscardLogger()
	visitors := NewSQLVisitorRepository(db.DB, logger)
	sessions := NewSQLSessionRepository(db.DB, logger)

	require.NoError(t, visitors.Create(ctx, &user.Visitor{ID: "v1", WorkspaceID: "ws1", CookieID: strPtr("c1"), FirstSeenAt: t0, LastSeenAt: t0}))
	require.NoError(t, sessions.Create(ctx, &user.Session{
		ID:          "s1",
		WorkspaceID: "ws1",
		VisitorID:   "v1",
		Touch:       attribution.Touch{Source: "google"},
		EntryURL:    "https://example.com/lp1",
		Device:      user.Device{Type: "mobile"},
		StartedAt:   t0,
		EndedAt:     t0,
	}))

	forty, twentyFive := 40, 25
	require.NoError(t, sessions.RecordActivity(ctx, "ws1", "s1", user.SessionActivity{PageView: true, ScrollDepth: &forty, URL: "https://example.com/lp1", At: t0.Add(time.Minute)}))
	require.NoError(t, sessions.RecordActivity(ctx, "ws1", "s1", user.SessionActivity{ScrollDepth: &twentyFive, At: t0.Add(30 * time.Second)}))

	got, err := sessions.FindByID(ctx, "ws1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.PageViews)
	assert.Equal(t, 2, got.EventCount)
	assert.Equal(t, 40, got.MaxScrollDepth)
	assert.Equal(t, "https://example.com/lp1", got.ExitURL)
	assert.True(t, got.EndedAt.Equal(t0.Add(time.Minute)))
	assert.Equal(t, "mobile", got.Device.Type)

	unscoped, err := sessions.FindByIDAnyWorkspace(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ws1", unscoped.WorkspaceID)

	require.NoError(t, sessions.AttachLead(ctx, "ws1", "s1", "lead-1"))
	list, err := sessions.FindByVisitor(ctx, "ws1", "v1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LeadID)
	assert.Equal(t, "lead-1", *list[0].LeadID)
}

func TestLeadRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewSQLLeadRepository(db.DB, logging.NewDiscardLogger())

	lead := &user.Lead{
		ID:             "l1",
		WorkspaceID:    "ws1",
		Email:          "ada@example.com",
		Name:           "Ada",
		Stage:          user.StageCaptured,
		StageChangedAt: t0,
		CustomFields:   map[string]any{"company": "Acme", "seats": float64(12)},
		Tags:           []string{"webinar", "vip"},
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	lead.SetFirstTouch(attribution.Touch{Source: "google", Medium: "cpc", Campaign: "spring"})
	lead.SetLastTouch(attribution.Touch{Source: "google", Medium: "cpc", Campaign: "spring"})
	require.NoError(t, repo.Create(ctx, lead))

	got, err := repo.FindByEmail(ctx, "ws1", "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lead.CustomFields, got.CustomFields)
	assert.Equal(t, lead.Tags, got.Tags)
	assert.Equal(t, "spring", got.FirstCampaign)

	err = repo.Create(ctx, &user.Lead{ID: "l2", WorkspaceID: "ws1", Email: "ada@example.com", Stage: user.StageCaptured, StageChangedAt: t0, CreatedAt: t0, UpdatedAt: t0})
	assert.True(t, apperrors.IsConflict(err))

	require.NoError(t, repo.UpdateLastTouch(ctx, "ws1", "l1", attribution.Touch{Source: "meta", Medium: "social"}, t0.Add(time.Hour)))
	require.NoError(t, repo.RecordPurchase(ctx, "ws1", "l1", 49.5, t0.Add(2*time.Hour)))
	require.NoError(t, repo.RecordPurchase(ctx, "ws1", "l1", 10, t0.Add(3*time.Hour)))

	got, err = repo.FindByIDAnyWorkspace(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "meta", got.LastSource)
	assert.Empty(t, got.LastCampaign)
	assert.Equal(t, "google", got.FirstSource)
	assert.InDelta(t, 59.5, got.LifetimeValue, 0.001)
	assert.Equal(t, 2, got.PurchaseCount)

	missing, err := repo.FindByID(ctx, "ws2", "l1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStageHistoryRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	logger := logging.NewDiscardLogger()
	leads := NewSQLLeadRepository(db.DB, logger)
	history := NewSQLStageHistoryRepository(db.DB, logger)

	require.NoError(t, leads.Create(ctx, &user.Lead{ID: "l1", WorkspaceID: "ws1", Email: "a@example.com", Stage: user.StageCaptured, StageChangedAt: t0, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, history.Append(ctx, &user.StageTransition{ID: "h1", WorkspaceID: "ws1", LeadID: "l1", ToStage: user.StageCaptured, EnteredAt: t0}))

	later := t0.Add(90 * time.Second)
	require.NoError(t, history.CloseOpen(ctx, "ws1", "l1", later))
	from := user.StageCaptured
	require.NoError(t, history.Append(ctx, &user.StageTransition{ID: "h2", WorkspaceID: "ws1", LeadID: "l1", FromStage: &from, ToStage: user.StageQualified, EnteredAt: later}))

	rows, err := history.FindByLead(ctx, "ws1", "l1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Nil(t, rows[0].FromStage)
	require.NotNil(t, rows[0].ExitedAt)
	require.NotNil(t, rows[0].DurationSeconds)
	assert.Equal(t, int64(90), *rows[0].DurationSeconds)

	assert.Equal(t, user.StageQualified, rows[1].ToStage)
	assert.Nil(t, rows[1].ExitedAt, "only the current stage is open")
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

func TestIdentityResolveByCookieIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	first, err := p.identity.Resolve(ctx, repos, IdentityRequest{
		WorkspaceID: "ws1",
		CookieID:    "c1",
		Touch:       attribution.Touch{Source: "google", Medium: "cpc"},
		At:          at,
	})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := p.identity.Resolve(ctx, repos, IdentityRequest{
		WorkspaceID: "ws1",
		CookieID:    " c1 ",
		Touch:       attribution.Touch{Source: "meta"},
		At:          at.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.VisitorID, second.VisitorID)
	assert.Equal(t, 1, testdb.Count(t, p.db, "visitors", "workspace_id = ?", "ws1"))

	visitor, err := repos.Visitors.FindByID(ctx, "ws1", first.VisitorID)
	require.NoError(t, err)
	assert.Equal(t, "google", visitor.FirstTouch.Source, "first touch is never rewritten")
	assert.True(t, visitor.LastSeenAt.Equal(at.Add(time.Hour)))
}

func TestIdentityFallsBackToFingerprint(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()

	byPrint, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", FingerprintHash: "fp1"})
	require.NoError(t, err)

	withCookie, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "fresh-cookie", FingerprintHash: "fp1"})
	require.NoError(t, err)
	assert.Equal(t, byPrint.VisitorID, withCookie.VisitorID)
	assert.False(t, withCookie.Created)
}

func TestIdentityIsScopedToWorkspace(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()

	a, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "shared"})
	require.NoError(t, err)
	b, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws2", CookieID: "shared"})
	require.NoError(t, err)
	assert.NotEqual(t, a.VisitorID, b.VisitorID)
	assert.True(t, b.Created)
}

func TestIdentityErrors(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()

	_, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, apperrors.CodeMissingIdentity, apperrors.CodeOf(err))

	_, err = p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", VisitorID: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, apperrors.CodeVisitorNotFound, apperrors.CodeOf(err))

	res, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", VisitorID: "nope", CookieID: "c9"})
	require.NoError(t, err, "an unknown visitor id falls back to the cookie")
	assert.True(t, res.Created)
}

func TestVisitorForLeadNeverCreates(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()

	visitor, err := p.identity.VisitorForLead(ctx, repos, "ws1", "", "unknown-cookie")
	require.NoError(t, err)
	assert.Nil(t, visitor)
	assert.Equal(t, 0, testdb.Count(t, p.db, "visitors", ""))
}

func TestIdentityRaceOnNewCookieResolvesExisting(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	winner, err := p.identity.Resolve(ctx, p.store.Repos(), IdentityRequest{WorkspaceID: "ws1", CookieID: "c-race", At: at})
	require.NoError(t, err)
	require.True(t, winner.Created)

	races := testutil.ToFloat64(metrics.VisitorsResolved.WithLabelValues("race"))
	err = p.store.InTx(ctx, func(repos repositories.Repositories) error {
		lagging := &laggingVisitors{VisitorRepository: repos.Visitors, misses: 1}
		repos.Visitors = lagging

		loser, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "c-race", At: at.Add(time.Second)})
		require.NoError(t, err)
		assert.Zero(t, lagging.misses, "the cookie lookup was raced")
		assert.False(t, loser.Created)
		assert.Equal(t, winner.VisitorID, loser.VisitorID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, races+1, testutil.ToFloat64(metrics.VisitorsResolved.WithLabelValues("race")))
	assert.Equal(t, 1, testdb.Count(t, p.db, "visitors", "workspace_id = ?", "ws1"))

	visitor, err := p.store.Repos().Visitors.FindByID(ctx, "ws1", winner.VisitorID)
	require.NoError(t, err)
	assert.True(t, visitor.LastSeenAt.Equal(at.Add(time.Second)), "the raced lookup still touches last seen")
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
)

func TestSessionLifecycle(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	visitor, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "c1", At: at})
	require.NoError(t, err)

	track := func(req SessionRequest) *SessionResult {
		t.Helper()
		req.WorkspaceID = "ws1"
		req.VisitorID = visitor.VisitorID
		res, err := p.sessions.Track(ctx, repos, req)
		require.NoError(t, err)
		return res
	}

	assert.Nil(t, track(SessionRequest{EventType: analytics.EventSessionStart, At: at}),
		"only a page view opens a session")

	opened := track(SessionRequest{
		EventType: analytics.EventPageView,
		Touch:     attribution.Touch{Source: "google", Medium: "cpc"},
		URL:       "https://example.com/lp1",
		At:        at,
	})
	require.NotNil(t, opened)
	assert.True(t, opened.Opened)

	extended := track(SessionRequest{SessionID: opened.SessionID, EventType: analytics.EventScroll, ScrollDepth: intPtr(40), At: at.Add(time.Minute)})
	assert.Equal(t, opened.SessionID, extended.SessionID)
	assert.False(t, extended.Opened)
	track(SessionRequest{SessionID: opened.SessionID, EventType: analytics.EventScroll, ScrollDepth: intPtr(25), At: at.Add(2 * time.Minute)})

	session, err := repos.Sessions.FindByID(ctx, "ws1", opened.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 40, session.MaxScrollDepth, "scroll depth keeps the maximum")
	assert.Equal(t, 1, session.PageViews)
	assert.Equal(t, 3, session.EventCount)
	assert.Equal(t, "https://example.com/lp1", session.EntryURL)
	assert.Equal(t, "google", session.Touch.Source)
	assert.True(t, session.EndedAt.Equal(at.Add(2*time.Minute)))
}

func TestSessionScrollIsClamped(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	err := p.store.InTx(ctx, func(repos repositories.Repositories) error {
		visitor, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "c1"})
		require.NoError(t, err)
		res, err := p.sessions.Track(ctx, repos, SessionRequest{
			WorkspaceID: "ws1",
			VisitorID:   visitor.VisitorID,
			EventType:   analytics.EventPageView,
			ScrollDepth: intPtr(250),
		})
		require.NoError(t, err)

		session, err := repos.Sessions.FindByID(ctx, "ws1", res.SessionID)
		require.NoError(t, err)
		assert.Equal(t, 100, session.MaxScrollDepth)
		return nil
	})
	require.NoError(t, err)
}

func TestUnknownSessionIDIsTreatedAsNone(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	repos := p.store.Repos()

	visitor, err := p.identity.Resolve(ctx, repos, IdentityRequest{WorkspaceID: "ws1", CookieID: "c1"})
	require.NoError(t, err)

	res, err := p.sessions.Track(ctx, repos, SessionRequest{WorkspaceID: "ws1", VisitorID: visitor.VisitorID, SessionID: "ghost", EventType: analytics.EventClick})
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = p.sessions.Track(ctx, repos, SessionRequest{WorkspaceID: "ws1", VisitorID: visitor.VisitorID, SessionID: "ghost", EventType: analytics.EventPageView})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotEqual(t, "ghost", res.SessionID)
	assert.True(t, res.Opened)
}

func TestSessionOfAnotherVisitorIsNotExtended(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	owner, err := p.tracking.Track(ctx, TrackRequest{Type: "page_view", LandingPageID: "lp1", CookieID: "visitor-b"})
	require.NoError(t, err)
	require.NotNil(t, owner.SessionID)

	other, err := p.tracking.Track(ctx, TrackRequest{Type: "page_view", LandingPageID: "lp1", CookieID: "visitor-a", SessionID: *owner.SessionID})
	require.NoError(t, err)
	require.NotNil(t, other.SessionID)
	assert.NotEqual(t, *owner.SessionID, *other.SessionID, "a page view opens its own session")
	assert.NotEqual(t, owner.VisitorID, other.VisitorID)

	repos := p.store.Repos()
	session, err := repos.Sessions.FindByID(ctx, "ws1", *owner.SessionID)
	require.NoError(t, err)
	assert.Equal(t, owner.VisitorID, session.VisitorID)
	assert.Equal(t, 1, session.PageViews)
	assert.Equal(t, 1, session.EventCount)

	opened, err := repos.Sessions.FindByID(ctx, "ws1", *other.SessionID)
	require.NoError(t, err)
	assert.Equal(t, other.VisitorID, opened.VisitorID)

	click, err := p.tracking.Track(ctx, TrackRequest{Type: "click", LandingPageID: "lp1", CookieID: "visitor-a", SessionID: *owner.SessionID})
	require.NoError(t, err)
	assert.Nil(t, click.SessionID, "other event types are logged without a session")

	events, err := repos.Events.FindBySession(ctx, "ws1", *owner.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, owner.VisitorID, events[0].VisitorID)
}

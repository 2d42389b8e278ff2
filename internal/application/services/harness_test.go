package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/caching/stores"
	"github.com/mikahq/mika-go/internal/infrastructure/email"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

// pipeline is the service graph the container builds, over an in-memory
// database seeded with workspace ws1 (landing page lp1, campaign c1) and
// workspace ws2 (landing page lp2).
type pipeline struct {
	db          *database.DB
	store       repositories.Store
	identity    *IdentityService
	sessions    *SessionService
	events      *EventLogger
	leads       *LeadService
	attribution *AttributionService
	redirects   *RedirectService
	tracking    *TrackingService
	published   *recordingPublisher
	notifier    *recordingNotifier
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := testdb.Open(t)
	testdb.SeedWorkspace(t, db, "ws1", "owner@example.com")
	testdb.SeedWorkspace(t, db, "ws2", "")
	testdb.SeedLandingPage(t, db, "ws1", "lp1")
	testdb.SeedLandingPage(t, db, "ws2", "lp2")
	testdb.SeedCampaign(t, db, "ws1", "c1", "google", "cpc")

	logger := logging.NewDiscardLogger()
	store := persistence.NewSQLStore(db, stores.NewLandingPageStore(time.Minute, logger), logger)
	return buildPipeline(t, db, store, logger)
}

func buildPipeline(t *testing.T, db *database.DB, store repositories.Store, logger *logging.ChanneledLogger) *pipeline {
	t.Helper()
	tracker := performance.NewTracker(32)
	published := &recordingPublisher{}
	notifier := &recordingNotifier{}

	resolver := NewWorkspaceResolver(store, logger)
	identity := NewIdentityService(logger)
	sessions := NewSessionService(logger)
	events := NewEventLogger(published, logger)
	leads := NewLeadService(store, resolver, identity, events, notifier, tracker, logger)
	t.Cleanup(leads.WaitNotifications)

	return &pipeline{
		db:          db,
		store:       store,
		identity:    identity,
		sessions:    sessions,
		events:      events,
		leads:       leads,
		attribution: NewAttributionService(store, logger),
		redirects:   NewRedirectService(store, resolver, events, logger),
		tracking:    NewTrackingService(store, resolver, identity, sessions, events, leads, tracker, logger),
		published:   published,
		notifier:    notifier,
	}
}

func (p *pipeline) eventTypes(t *testing.T, workspaceID, leadID string) []analytics.EventType {
	t.Helper()
	events, err := p.store.Repos().Events.FindByLead(context.Background(), workspaceID, leadID)
	require.NoError(t, err)
	types := make([]analytics.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*analytics.Event
}

func (p *recordingPublisher) Publish(e *analytics.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []analytics.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]analytics.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []email.NewLeadNotice
}

func (n *recordingNotifier) NotifyNewLead(_ context.Context, notice email.NewLeadNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) Notices() []email.NewLeadNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]email.NewLeadNotice(nil), n.notices...)
}

// brokenEventsStore fails every event append made outside a transaction.
type brokenEventsStore struct {
	repositories.Store
}

func (s brokenEventsStore) Repos() repositories.Repositories {
	repos := s.Store.Repos()
	repos.Events = failingEvents{repos.Events}
	return repos
}

type failingEvents struct {
	analytics.EventRepository
}

func (failingEvents) Append(context.Context, *analytics.Event) error {
	return errors.New("event store unavailable")
}

func intPtr(v int) *int { return &v }

// laggingVisitors misses the first cookie lookup, as a request racing another
// one for the same new cookie would.
type laggingVisitors struct {
	user.VisitorRepository
	misses int
}

func (v *laggingVisitors) FindByCookieID(ctx context.Context, workspaceID, cookieID string) (*user.Visitor, error) {
	if v.misses > 0 {
		v.misses--
		return nil, nil
	}
	return v.VisitorRepository.FindByCookieID(ctx, workspaceID, cookieID)
}

// laggingLeads misses the first email lookup, as a capture racing another one
// for the same new email would.
type laggingLeads struct {
	user.LeadRepository
	misses int
}

func (l *laggingLeads) FindByEmail(ctx context.Context, workspaceID, email string) (*user.Lead, error) {
	if l.misses > 0 {
		l.misses--
		return nil, nil
	}
	return l.LeadRepository.FindByEmail(ctx, workspaceID, email)
}

// laggingLeadStore hands transactions a lead repository whose first email
// lookups miss.
type laggingLeadStore struct {
	repositories.Store
	misses *int
}

func (s laggingLeadStore) InTx(ctx context.Context, fn func(repositories.Repositories) error) error {
	return s.Store.InTx(ctx, func(repos repositories.Repositories) error {
		leads := &laggingLeads{LeadRepository: repos.Leads, misses: *s.misses}
		repos.Leads = leads
		defer func() { *s.misses = leads.misses }()
		return fn(repos)
	})
}

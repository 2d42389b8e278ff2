// Package stores provides concrete cache store implementations
package stores

import (
	"sync"
	"time"

	"github.com/mikahq/mika-go/internal/domain/entities/content"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

type landingPageEntry struct {
	page      *content.LandingPage
	expiresAt time.Time
}

// LandingPageStore caches landing pages by id with a fixed TTL. It is used to
// resolve the workspace of beacon traffic without a database read per event.
// Counter columns on cached pages are not kept current.
type LandingPageStore struct {
	entries map[string]landingPageEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
}

// NewLandingPageStore creates a new landing page cache store
func NewLandingPageStore(ttl time.Duration, logger *logging.ChanneledLogger) *LandingPageStore {
	if logger != nil {
		logger.Cache().Info("Initializing landing page cache store", "ttl", ttl)
	}
	return &LandingPageStore{
		entries: make(map[string]landingPageEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the time source. Tests only.
func (s *LandingPageStore) WithClock(now func() time.Time) *LandingPageStore {
	s.now = now
	return s
}

// Get returns a cached page that has not expired.
func (s *LandingPageStore) Get(id string) (*content.LandingPage, bool) {
	start := time.Now()
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	hit := ok && s.now().Before(entry.expiresAt)
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "landing_page", "id", id, "hit", hit, "duration", time.Since(start))
	}
	if !hit {
		return nil, false
	}
	return entry.page, true
}

// Set stores page until the TTL elapses.
func (s *LandingPageStore) Set(page *content.LandingPage) {
	if page == nil {
		return
	}
	s.mu.Lock()
	s.entries[page.ID] = landingPageEntry{page: page, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "set", "type", "landing_page", "id", page.ID, "workspaceId", page.WorkspaceID)
	}
}

// Invalidate drops one page from the cache.
func (s *LandingPageStore) Invalidate(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "invalidate", "type", "landing_page", "id", id)
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (s *LandingPageStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, expired or not.
func (s *LandingPageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mikahq/mika-go/internal/domain/entities/content"
)

func TestLandingPageStoreTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewLandingPageStore(time.Minute, nil).WithClock(func() time.Time { return now })

	store.Set(&content.LandingPage{ID: "lp1", WorkspaceID: "ws1"})
	store.Set(nil)

	page, ok := store.Get("lp1")
	assert.True(t, ok)
	assert.Equal(t, "ws1", page.WorkspaceID)

	now = now.Add(time.Minute)
	_, ok = store.Get("lp1")
	assert.False(t, ok, "entries expire at the TTL boundary")
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())

	store.Set(&content.LandingPage{ID: "lp2", WorkspaceID: "ws1"})
	store.Invalidate("lp2")
	_, ok = store.Get("lp2")
	assert.False(t, ok)
}

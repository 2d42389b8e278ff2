package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

func TestEventRepositoryOrdering(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewSQLEventRepository(db.DB, logging.NewDiscardLogger())

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	session := "s1"
	value := 19.99
	appendEvent := func(id string, typ analytics.EventType, created time.Time) *analytics.Event {
		e := &analytics.Event{
			ID:          id,
			WorkspaceID: "ws1",
			VisitorID:   "v1",
			SessionID:   &session,
			Type:        typ,
			Metadata:    map[string]any{"scrollDepth": 40},
			CreatedAt:   created,
		}
		require.NoError(t, repo.Append(ctx, e))
		return e
	}

	appendEvent("e3", analytics.EventClick, at.Add(time.Second))
	first := appendEvent("e1", analytics.EventPageView, at)
	appendEvent("e2", analytics.EventScroll, at)
	require.NoError(t, repo.Append(ctx, &analytics.Event{ID: "e4", WorkspaceID: "ws1", VisitorID: "v1", Type: analytics.EventPurchase, Value: &value, CreatedAt: at.Add(time.Minute)}))
	assert.NotZero(t, first.Seq)

	events, err := repo.FindByVisitor(ctx, "ws1", "v1")
	require.NoError(t, err)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, ids, "same-timestamp events keep insertion order")

	assert.Equal(t, float64(40), events[0].Metadata["scrollDepth"])
	require.NotNil(t, events[3].Value)
	assert.InDelta(t, 19.99, *events[3].Value, 0.0001)
	assert.NotNil(t, events[3].Metadata, "metadata defaults to an empty object")

	bySession, err := repo.FindBySession(ctx, "ws1", "s1")
	require.NoError(t, err)
	assert.Len(t, bySession, 3)

	other, err := repo.FindByVisitor(ctx, "ws2", "v1")
	require.NoError(t, err)
	assert.Empty(t, other)
}

package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

func startHub(t *testing.T) *LiveHub {
	t.Helper()
	hub := NewLiveHub(logging.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestLiveHubDeliversToWorkspaceSubscribers(t *testing.T) {
	hub := startHub(t)
	logger := logging.NewDiscardLogger()

	subscriber := NewLiveClient(hub, nil, "ws1", logger)
	outsider := NewLiveClient(hub, nil, "ws2", logger)
	hub.Register(subscriber)
	hub.Register(outsider)
	require.Eventually(t, func() bool { return hub.SubscriberCount("ws1") == 1 }, time.Second, time.Millisecond)

	session := "s1"
	hub.Publish(&analytics.Event{
		ID:          "e1",
		WorkspaceID: "ws1",
		VisitorID:   "v1",
		SessionID:   &session,
		Type:        analytics.EventPageView,
		Metadata:    map[string]any{"email": "secret@example.com"},
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	select {
	case raw := <-subscriber.Send:
		var frame map[string]any
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, "page_view", frame["type"])
		assert.Equal(t, "e1", frame["eventId"])
		assert.Equal(t, "s1", frame["sessionId"])
		assert.NotContains(t, frame, "metadata")
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	select {
	case <-outsider.Send:
		t.Fatal("frame leaked to another workspace")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLiveHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	client := NewLiveClient(hub, nil, "ws1", logging.NewDiscardLogger())
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.SubscriberCount("ws1"))
}

func TestLiveHubShutdownClosesClients(t *testing.T) {
	hub := NewLiveHub(logging.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { hub.Run(ctx); close(done) }()

	client := NewLiveClient(hub, nil, "ws1", logging.NewDiscardLogger())
	hub.Register(client)
	cancel()
	<-done

	_, ok := <-client.Send
	assert.False(t, ok)

	late := NewLiveClient(hub, nil, "ws1", logging.NewDiscardLogger())
	hub.Register(late)
	_, ok = <-late.Send
	assert.False(t, ok, "registration after shutdown closes immediately")
	hub.Unregister(late)
	hub.Publish(nil)
}

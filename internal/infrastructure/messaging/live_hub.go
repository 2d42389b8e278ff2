package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
)

// Frame is the message written to live subscribers. It carries ids only;
// metadata and lead details stay behind the authenticated read endpoints.
type Frame struct {
	Type      analytics.EventType `json:"type"`
	EventID   string              `json:"eventId"`
	VisitorID string              `json:"visitorId,omitempty"`
	SessionID *string             `json:"sessionId,omitempty"`
	LeadID    *string             `json:"leadId,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// NewFrame projects an event onto the live wire format.
func NewFrame(event *analytics.Event) Frame {
	return Frame{
		Type:      event.Type,
		EventID:   event.ID,
		VisitorID: event.VisitorID,
		SessionID: event.SessionID,
		LeadID:    event.LeadID,
		CreatedAt: event.CreatedAt,
	}
}

// LiveHub manages workspace-scoped live feed subscribers and broadcasts
// committed events to them.
type LiveHub struct {
	workspaceClients map[string]map[*LiveClient]bool
	register         chan *LiveClient
	unregister       chan *LiveClient
	broadcast        chan *analytics.Event
	done             chan struct{}
	logger           *logging.ChanneledLogger
	mu               sync.RWMutex
}

// NewLiveHub creates a new hub instance.
func NewLiveHub(logger *logging.ChanneledLogger) *LiveHub {
	return &LiveHub{
		workspaceClients: make(map[string]map[*LiveClient]bool),
		register:         make(chan *LiveClient),
		unregister:       make(chan *LiveClient),
		broadcast:        make(chan *analytics.Event, 1024),
		done:             make(chan struct{}),
		logger:           logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every subscriber.
func (h *LiveHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.workspaceClients[client.WorkspaceID]; !ok {
				h.workspaceClients[client.WorkspaceID] = make(map[*LiveClient]bool)
			}
			h.workspaceClients[client.WorkspaceID][client] = true
			h.mu.Unlock()
			metrics.LiveSubscribers.Inc()
			h.logger.Live().Info("Live client registered", "workspaceId", client.WorkspaceID)

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			h.dispatch(event)
		}
	}
}

// Register queues a client for registration.
func (h *LiveHub) Register(client *LiveClient) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister queues a client for unregistration.
func (h *LiveHub) Unregister(client *LiveClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for broadcast. When the queue is full the event is
// dropped; the event stream in the database remains the source of truth.
func (h *LiveHub) Publish(event *analytics.Event) {
	if event == nil {
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Live().Warn("Live broadcast queue full, event dropped", "eventId", event.ID, "workspaceId", event.WorkspaceID)
	}
}

// SubscriberCount returns the number of clients connected for a workspace.
func (h *LiveHub) SubscriberCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaceClients[workspaceID])
}

func (h *LiveHub) dispatch(event *analytics.Event) {
	message, err := json.Marshal(NewFrame(event))
	if err != nil {
		h.logger.Live().Error("Failed to marshal live frame", "error", err.Error(), "eventId", event.ID)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.workspaceClients[event.WorkspaceID] {
		select {
		case client.Send <- message:
		default:
			h.logger.Live().Warn("Live client buffer full, frame dropped", "workspaceId", event.WorkspaceID)
		}
	}
}

func (h *LiveHub) remove(client *LiveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.workspaceClients[client.WorkspaceID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)
			metrics.LiveSubscribers.Dec()
			if len(clients) == 0 {
				delete(h.workspaceClients, client.WorkspaceID)
			}
			h.logger.Live().Info("Live client unregistered", "workspaceId", client.WorkspaceID)
		}
	}
}

func (h *LiveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws, clients := range h.workspaceClients {
		for client := range clients {
			close(client.Send)
			metrics.LiveSubscribers.Dec()
		}
		delete(h.workspaceClients, ws)
	}
}

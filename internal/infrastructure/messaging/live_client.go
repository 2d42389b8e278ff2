package messaging

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// LiveClient is one connected live feed subscriber.
type LiveClient struct {
	WorkspaceID string
	Send        chan []byte
	conn        *websocket.Conn
	hub         *LiveHub
	logger      *logging.ChanneledLogger
}

// NewLiveClient wraps an upgraded connection.
func NewLiveClient(hub *LiveHub, conn *websocket.Conn, workspaceID string, logger *logging.ChanneledLogger) *LiveClient {
	return &LiveClient{
		WorkspaceID: workspaceID,
		Send:        make(chan []byte, 256),
		conn:        conn,
		hub:         hub,
		logger:      logger,
	}
}

// Start registers the client and runs its pumps.
func (c *LiveClient) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound messages and detects disconnects. The feed is
// one-way.
func (c *LiveClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Live().Warn("Unexpected live socket close", "error", err.Error(), "workspaceId", c.WorkspaceID)
			}
			return
		}
	}
}

func (c *LiveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

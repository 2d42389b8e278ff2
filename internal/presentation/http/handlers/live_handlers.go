package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/infrastructure/messaging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/presentation/http/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The route is token-authenticated; origin is not used for access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandlers upgrades authenticated callers to the live activity feed.
type LiveHandlers struct {
	hub    *messaging.LiveHub
	logger *logging.ChanneledLogger
}

func NewLiveHandlers(hub *messaging.LiveHub, logger *logging.ChanneledLogger) *LiveHandlers {
	return &LiveHandlers{hub: hub, logger: logger}
}

// GetLive handles GET /api/live
func (h *LiveHandlers) GetLive(c *gin.Context) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		middleware.RespondError(c, h.logger, logging.ChannelLive, apperrors.Validation(apperrors.CodeMissingWorkspace, "workspace not resolved"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithContext(c.Request.Context(), logging.ChannelLive).Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	messaging.NewLiveClient(h.hub, conn, workspaceID, h.logger).Start()
}

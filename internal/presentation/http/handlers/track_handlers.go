// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/application/services"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/presentation/http/middleware"
)

// TrackPayload is the JSON body of POST /api/track.
type TrackPayload struct {
	Type            string            `json:"type"`
	Name            string            `json:"name"`
	Value           *float64          `json:"value"`
	LandingPageID   string            `json:"landingPageId"`
	VisitorID       string            `json:"visitorId"`
	CookieID        string            `json:"cookieId"`
	FingerprintHash string            `json:"fingerprintHash"`
	SessionID       string            `json:"sessionId"`
	LeadID          string            `json:"leadId"`
	CampaignID      string            `json:"campaignId"`
	URL             string            `json:"url"`
	UTM             attribution.Touch `json:"utm"`
	Referrer        string            `json:"referrer"`
	EntryURL        string            `json:"entryUrl"`
	Device          user.Device       `json:"device"`
	Geo             user.Geo          `json:"geo"`
	ScrollDepth     *float64          `json:"scrollDepth"`
	TimeOnPage      *float64          `json:"timeOnPage"`
	ElementClicked  string            `json:"elementClicked"`
	Metadata        map[string]any    `json:"metadata"`
}

// TrackResponse is the success body of POST /api/track.
type TrackResponse struct {
	Success   bool    `json:"success"`
	EventID   string  `json:"eventId"`
	VisitorID string  `json:"visitorId"`
	SessionID *string `json:"sessionId"`
}

// TrackHandlers serves the beacon endpoint.
type TrackHandlers struct {
	tracking *services.TrackingService
	logger   *logging.ChanneledLogger
}

func NewTrackHandlers(tracking *services.TrackingService, logger *logging.ChanneledLogger) *TrackHandlers {
	return &TrackHandlers{tracking: tracking, logger: logger}
}

// PostTrack handles POST /api/track
func (h *TrackHandlers) PostTrack(c *gin.Context) {
	start := time.Now()

	var payload TrackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelTracking, apperrors.Validation(apperrors.CodeInvalidPayload, "invalid request body"))
		return
	}

	result, err := h.tracking.Track(c.Request.Context(), services.TrackRequest{
		Type:            payload.Type,
		Name:            payload.Name,
		Value:           payload.Value,
		LandingPageID:   payload.LandingPageID,
		VisitorID:       payload.VisitorID,
		CookieID:        payload.CookieID,
		FingerprintHash: payload.FingerprintHash,
		SessionID:       payload.SessionID,
		LeadID:          payload.LeadID,
		CampaignID:      payload.CampaignID,
		URL:             payload.URL,
		UTM:             payload.UTM,
		Referrer:        payload.Referrer,
		EntryURL:        payload.EntryURL,
		Device:          payload.Device,
		Geo:             payload.Geo,
		ScrollDepth:     roundPercent(payload.ScrollDepth),
		TimeOnPage:      payload.TimeOnPage,
		ElementClicked:  payload.ElementClicked,
		Metadata:        payload.Metadata,
	})
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelTracking, err)
		return
	}

	h.logger.WithContext(c.Request.Context(), logging.ChannelTracking).Debug("Track request completed",
		"eventId", result.EventID, "workspaceId", result.WorkspaceID, "duration", time.Since(start))

	c.JSON(http.StatusOK, TrackResponse{
		Success:   true,
		EventID:   result.EventID,
		VisitorID: result.VisitorID,
		SessionID: result.SessionID,
	})
}

func roundPercent(v *float64) *int {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	rounded := int(math.Round(*v))
	return &rounded
}

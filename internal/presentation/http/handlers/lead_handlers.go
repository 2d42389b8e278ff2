package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/application/services"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/presentation/http/middleware"
)

// LeadPayload is the JSON body of POST /api/leads.
type LeadPayload struct {
	Email         string            `json:"email"`
	Name          string            `json:"name"`
	Phone         string            `json:"phone"`
	VisitorID     string            `json:"visitorId"`
	CookieID      string            `json:"cookieId"`
	SessionID     string            `json:"sessionId"`
	CapturedVia   string            `json:"capturedVia"`
	LandingPageID string            `json:"landingPageId"`
	CampaignID    string            `json:"campaignId"`
	UTM           attribution.Touch `json:"utm"`
	CustomFields  map[string]any    `json:"customFields"`
	Tags          []string          `json:"tags"`
}

// StagePayload is the JSON body of PATCH /api/leads/:id/stage.
type StagePayload struct {
	Stage string `json:"stage" binding:"required"`
}

// LeadHandlers serves lead capture and the authenticated lead endpoints.
type LeadHandlers struct {
	leads       *services.LeadService
	attribution *services.AttributionService
	logger      *logging.ChanneledLogger
}

func NewLeadHandlers(leads *services.LeadService, attribution *services.AttributionService, logger *logging.ChanneledLogger) *LeadHandlers {
	return &LeadHandlers{leads: leads, attribution: attribution, logger: logger}
}

// PostLead handles POST /api/leads
func (h *LeadHandlers) PostLead(c *gin.Context) {
	start := time.Now()

	var payload LeadPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeInvalidPayload, "invalid request body"))
		return
	}

	result, err := h.leads.Capture(c.Request.Context(), services.CaptureRequest{
		Email:         payload.Email,
		Name:          payload.Name,
		Phone:         payload.Phone,
		VisitorID:     payload.VisitorID,
		CookieID:      payload.CookieID,
		SessionID:     payload.SessionID,
		CapturedVia:   payload.CapturedVia,
		LandingPageID: payload.LandingPageID,
		CampaignID:    payload.CampaignID,
		UTM:           payload.UTM,
		CustomFields:  payload.CustomFields,
		Tags:          payload.Tags,
	})
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, err)
		return
	}

	h.logger.WithContext(c.Request.Context(), logging.ChannelLeads).Debug("Lead request completed",
		"leadId", result.LeadID, "isNew", result.IsNew, "duration", time.Since(start))

	status, message := http.StatusOK, "Lead updated"
	if result.IsNew {
		status, message = http.StatusCreated, "Lead captured"
	}
	c.JSON(status, gin.H{
		"success": true,
		"leadId":  result.LeadID,
		"isNew":   result.IsNew,
		"message": message,
	})
}

// GetLead handles GET /api/leads?id=|email=
func (h *LeadHandlers) GetLead(c *gin.Context) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeMissingWorkspace, "workspace not resolved"))
		return
	}

	lead, err := h.leads.Get(c.Request.Context(), workspaceID, c.Query("id"), c.Query("email"))
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

// PatchStage handles PATCH /api/leads/:id/stage
func (h *LeadHandlers) PatchStage(c *gin.Context) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeMissingWorkspace, "workspace not resolved"))
		return
	}

	var payload StagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeInvalidPayload, "invalid request body"))
		return
	}

	lead, err := h.leads.ChangeStage(c.Request.Context(), workspaceID, c.Param("id"), payload.Stage)
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

// GetHistory handles GET /api/leads/:id/history
func (h *LeadHandlers) GetHistory(c *gin.Context) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeMissingWorkspace, "workspace not resolved"))
		return
	}

	history, err := h.leads.History(c.Request.Context(), workspaceID, c.Param("id"))
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": history, "count": len(history)})
}

// GetAttribution handles GET /api/leads/:id/attribution
func (h *LeadHandlers) GetAttribution(c *gin.Context) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, apperrors.Validation(apperrors.CodeMissingWorkspace, "workspace not resolved"))
		return
	}

	report, err := h.attribution.Rebuild(c.Request.Context(), workspaceID, c.Param("id"))
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelLeads, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attribution": report})
}

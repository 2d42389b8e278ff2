package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/application/services"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
	"github.com/mikahq/mika-go/internal/presentation/http/middleware"
)

// RedirectHandlers serves tracked outbound links.
type RedirectHandlers struct {
	redirects   *services.RedirectService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

func NewRedirectHandlers(redirects *services.RedirectService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *RedirectHandlers {
	return &RedirectHandlers{redirects: redirects, logger: logger, perfTracker: perfTracker}
}

// GetRedirect handles GET /api/redirect/:leadId. Once dest is valid the
// response is a 302 no matter what happens to the tracking writes.
func (h *RedirectHandlers) GetRedirect(c *gin.Context) {
	dest, err := services.ValidateDestination(c.Query("dest"))
	if err != nil {
		middleware.RespondError(c, h.logger, logging.ChannelRedirect, err)
		return
	}

	marker := h.perfTracker.StartOperation("redirect", "")
	defer marker.Complete()

	dest, err = h.redirects.Redirect(c.Request.Context(), services.RedirectRequest{
		LeadID:        c.Param("leadId"),
		Destination:   dest,
		CampaignID:    c.Query("cid"),
		LandingPageID: c.Query("lpid"),
		AffiliateID:   c.Query("aid"),
		Source:        c.Query("src"),
		Medium:        c.Query("med"),
	})
	if err != nil {
		marker.SetError(err)
		middleware.RespondError(c, h.logger, logging.ChannelRedirect, err)
		return
	}

	marker.SetSuccess(true)
	c.Redirect(http.StatusFound, dest)
}

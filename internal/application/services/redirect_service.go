package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/entities/content"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
)

// RedirectRequest is a tracked outbound link click.
type RedirectRequest struct {
	LeadID        string
	Destination   string
	CampaignID    string
	LandingPageID string
	AffiliateID   string
	Source        string
	Medium        string
	At            time.Time
}

// ValidateDestination accepts only absolute http and https URLs.
func ValidateDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", apperrors.Validation(apperrors.CodeMissingDestination, "dest is required")
	}
	u, err := url.Parse(dest)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperrors.Validation(apperrors.CodeInvalidDestination, "dest must be an absolute http(s) URL")
	}
	return dest, nil
}

// RedirectService records clicks on tracked links. Only destination
// validation can fail a redirect; every tracking step runs in the best-effort
// lane.
type RedirectService struct {
	store      repositories.Store
	resolver   *WorkspaceResolver
	events     *EventLogger
	bestEffort *BestEffort
	logger     *logging.ChanneledLogger
}

func NewRedirectService(store repositories.Store, resolver *WorkspaceResolver, events *EventLogger, logger *logging.ChanneledLogger) *RedirectService {
	return &RedirectService{
		store:      store,
		resolver:   resolver,
		events:     events,
		bestEffort: NewBestEffort(logger, logging.ChannelRedirect),
		logger:     logger,
	}
}

// Redirect returns the validated destination after attempting to record the click.
func (s *RedirectService) Redirect(ctx context.Context, req RedirectRequest) (string, error) {
	dest, err := ValidateDestination(req.Destination)
	if err != nil {
		return "", err
	}
	req.Destination = dest
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	s.bestEffort.Run(ctx, "redirect_tracking", func(ctx context.Context) error {
		s.track(ctx, req)
		return nil
	})
	return dest, nil
}

func (s *RedirectService) track(ctx context.Context, req RedirectRequest) {
	repos := s.store.Repos()
	log := s.logger.WithContext(ctx, logging.ChannelRedirect)

	var lead *user.Lead
	if req.LeadID != "" {
		s.bestEffort.Run(ctx, "redirect_lead_lookup", func(ctx context.Context) error {
			found, err := repos.Leads.FindByIDAnyWorkspace(ctx, req.LeadID)
			lead = found
			return err
		})
	}
	if lead == nil {
		log.Warn("Redirect for unknown lead", "leadId", req.LeadID)
	}

	workspaceID := ""
	var landingPageID *string
	if lead != nil {
		workspaceID = lead.WorkspaceID
	}
	if req.LandingPageID != "" {
		s.bestEffort.Run(ctx, "redirect_landing_page", func(ctx context.Context) error {
			scope, err := s.resolver.Resolve(ctx, req.LandingPageID, "")
			if err != nil {
				return err
			}
			if workspaceID == "" {
				workspaceID = scope.WorkspaceID
			}
			if scope.WorkspaceID == workspaceID {
				landingPageID = &scope.LandingPage.ID
			}
			return nil
		})
	}
	if workspaceID == "" {
		log.Warn("Redirect without workspace context, click not recorded", "leadId", req.LeadID)
		return
	}

	var campaign *content.Campaign
	if req.CampaignID != "" {
		s.bestEffort.Run(ctx, "redirect_campaign_lookup", func(ctx context.Context) error {
			found, err := repos.Campaigns.FindByID(ctx, workspaceID, req.CampaignID)
			campaign = found
			return err
		})
	}

	var touch attribution.Touch
	applyTouch := req.CampaignID != "" && lead != nil
	if applyTouch {
		touch = attribution.Touch{Source: req.Source, Medium: req.Medium, Campaign: req.CampaignID}
		if campaign != nil {
			touch.Source = firstNonEmpty(touch.Source, campaign.Source)
			touch.Medium = firstNonEmpty(touch.Medium, campaign.Medium)
		}
		touch = touch.Normalize()
	}

	kind := analytics.EventClick
	if req.AffiliateID != "" {
		kind = analytics.EventAffiliateRedirect
	}
	event := &analytics.Event{
		WorkspaceID:   workspaceID,
		LandingPageID: landingPageID,
		Type:          kind,
		URL:           req.Destination,
		Metadata:      redirectMetadata(req),
		CreatedAt:     req.At,
	}
	if lead != nil {
		event.LeadID = &lead.ID
		if lead.VisitorID != nil {
			event.VisitorID = *lead.VisitorID
		}
	}
	if campaign != nil {
		event.CampaignID = &campaign.ID
	}
	if applyTouch {
		event.Metadata[analytics.MetaUTM] = TouchMetadata(touch)
	}

	s.bestEffort.Run(ctx, "redirect_event", func(ctx context.Context) error {
		if err := s.events.Append(ctx, repos, event); err != nil {
			return err
		}
		s.events.Publish(event)
		return nil
	})

	if applyTouch {
		s.bestEffort.Run(ctx, "redirect_last_touch", func(ctx context.Context) error {
			return repos.Leads.UpdateLastTouch(ctx, workspaceID, lead.ID, touch, req.At)
		})
	}
	if campaign != nil {
		s.bestEffort.Run(ctx, "campaign_clicks", func(ctx context.Context) error {
			return repos.Campaigns.IncrementClicks(ctx, workspaceID, campaign.ID)
		})
	}

	metrics.Redirects.WithLabelValues(string(kind)).Inc()
	log.Info("Redirect tracked", "type", kind, "leadId", req.LeadID, "workspaceId", workspaceID)
}

func redirectMetadata(req RedirectRequest) map[string]any {
	metadata := map[string]any{analytics.MetaDestination: req.Destination}
	if req.AffiliateID != "" {
		metadata[analytics.MetaAffiliateID] = req.AffiliateID
	}
	if req.Source != "" {
		metadata[analytics.MetaRedirectSource] = req.Source
	}
	if req.Medium != "" {
		metadata[analytics.MetaRedirectMedium] = req.Medium
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

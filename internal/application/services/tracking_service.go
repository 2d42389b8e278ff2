package services

import (
	"context"
	"strings"
	"time"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
)

// TrackRequest is one beacon call.
type TrackRequest struct {
	Type            string
	Name            string
	Value           *float64
	LandingPageID   string
	VisitorID       string
	CookieID        string
	FingerprintHash string
	SessionID       string
	LeadID          string
	CampaignID      string
	URL             string
	UTM             attribution.Touch
	Referrer        string
	EntryURL        string
	Device          user.Device
	Geo             user.Geo
	ScrollDepth     *int
	TimeOnPage      *float64
	ElementClicked  string
	Metadata        map[string]any
	At              time.Time
}

// TrackResult identifies what the event was attached to.
type TrackResult struct {
	EventID     string
	VisitorID   string
	SessionID   *string
	WorkspaceID string
}

// TrackingService runs the per-event pipeline: resolve identity, attach the
// session, append the event, update aggregates. All writes share one
// transaction.
type TrackingService struct {
	store    repositories.Store
	resolver *WorkspaceResolver
	identity *IdentityService
	sessions *SessionService
	events   *EventLogger
	leads    *LeadService
	tracker  *performance.Tracker
	logger   *logging.ChanneledLogger
}

func NewTrackingService(
	store repositories.Store,
	resolver *WorkspaceResolver,
	identity *IdentityService,
	sessions *SessionService,
	events *EventLogger,
	leads *LeadService,
	tracker *performance.Tracker,
	logger *logging.ChanneledLogger,
) *TrackingService {
	return &TrackingService{
		store:    store,
		resolver: resolver,
		identity: identity,
		sessions: sessions,
		events:   events,
		leads:    leads,
		tracker:  tracker,
		logger:   logger,
	}
}

// Track records one beacon event.
func (s *TrackingService) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	marker := s.tracker.StartOperation("track", "")
	defer marker.Complete()

	eventType, err := parseEventType(req.Type)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	scope, err := s.resolver.Resolve(ctx, req.LandingPageID, req.SessionID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	ws := scope.WorkspaceID
	marker.WorkspaceID = ws

	touch := req.UTM
	touch.Referrer = req.Referrer
	touch = touch.Normalize()

	var (
		result    *TrackResult
		published []*analytics.Event
	)
	err = s.store.InTx(ctx, func(repos repositories.Repositories) error {
		result, published = nil, nil

		identityReq := IdentityRequest{
			WorkspaceID:     ws,
			VisitorID:       req.VisitorID,
			CookieID:        req.CookieID,
			FingerprintHash: req.FingerprintHash,
			Touch:           touch,
			At:              req.At,
		}
		if !identityReq.hasIdentity() && scope.Session != nil {
			identityReq.VisitorID = scope.Session.VisitorID
		}
		identity, err := s.identity.Resolve(ctx, repos, identityReq)
		if err != nil {
			return err
		}

		session, err := s.sessions.Track(ctx, repos, SessionRequest{
			WorkspaceID: ws,
			VisitorID:   identity.VisitorID,
			SessionID:   req.SessionID,
			EventType:   eventType,
			Touch:       touch,
			EntryURL:    req.EntryURL,
			URL:         req.URL,
			Device:      req.Device,
			Geo:         req.Geo,
			ScrollDepth: req.ScrollDepth,
			At:          req.At,
		})
		if err != nil {
			return err
		}

		event := &analytics.Event{
			WorkspaceID: ws,
			VisitorID:   identity.VisitorID,
			Type:        eventType,
			Name:        strings.TrimSpace(req.Name),
			Value:       req.Value,
			URL:         req.URL,
			Metadata: FoldMetadata(req.Metadata, Engagement{
				ScrollDepth:    req.ScrollDepth,
				TimeOnPage:     req.TimeOnPage,
				ElementClicked: req.ElementClicked,
				UTM:            touch,
				Referrer:       touch.Referrer,
			}),
			CreatedAt: req.At,
		}
		if session != nil {
			event.SessionID = &session.SessionID
		}
		if scope.LandingPage != nil {
			event.LandingPageID = &scope.LandingPage.ID
		}
		if err := s.linkLead(ctx, repos, event, req.LeadID); err != nil {
			return err
		}
		if err := s.linkCampaign(ctx, repos, event, req.CampaignID); err != nil {
			return err
		}

		if err := s.events.Append(ctx, repos, event); err != nil {
			return err
		}
		published = append(published, event)

		if eventType == analytics.EventPageView && scope.LandingPage != nil {
			if err := repos.LandingPages.IncrementViews(ctx, ws, scope.LandingPage.ID); err != nil {
				return err
			}
		}
		if eventType == analytics.EventPurchase && event.LeadID != nil && req.Value != nil {
			_, stageEvents, err := s.leads.RecordPurchase(ctx, repos, ws, *event.LeadID, *req.Value, req.At)
			if err != nil {
				return err
			}
			published = append(published, stageEvents...)
		}

		result = &TrackResult{
			EventID:     event.ID,
			VisitorID:   identity.VisitorID,
			SessionID:   event.SessionID,
			WorkspaceID: ws,
		}
		return nil
	})
	if err != nil {
		marker.SetError(err)
		if !apperrors.IsValidation(err) && !apperrors.IsNotFound(err) {
			s.logger.Tracking().Error("Track failed", "workspaceId", ws, "type", eventType, "error", err.Error())
		}
		return nil, err
	}

	s.events.Publish(published...)
	CountTransitions(published)
	marker.SetSuccess(true)
	return result, nil
}

func parseEventType(raw string) (analytics.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperrors.Validation(apperrors.CodeMissingEventType, "type is required")
	}
	eventType, ok := analytics.ParseBeaconType(raw)
	if !ok {
		return "", apperrors.Validation(apperrors.CodeInvalidEventType, "unknown event type")
	}
	return eventType, nil
}

// linkLead associates the event with a lead of the same workspace. Unknown ids
// are dropped with a warning.
func (s *TrackingService) linkLead(ctx context.Context, repos repositories.Repositories, event *analytics.Event, leadID string) error {
	if leadID = strings.TrimSpace(leadID); leadID == "" {
		return nil
	}
	lead, err := repos.Leads.FindByID(ctx, event.WorkspaceID, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		s.logger.Tracking().Warn("Unknown lead id on tracked event", "leadId", leadID, "workspaceId", event.WorkspaceID)
		return nil
	}
	event.LeadID = &lead.ID
	return nil
}

func (s *TrackingService) linkCampaign(ctx context.Context, repos repositories.Repositories, event *analytics.Event, campaignID string) error {
	if campaignID = strings.TrimSpace(campaignID); campaignID == "" {
		return nil
	}
	campaign, err := repos.Campaigns.FindByID(ctx, event.WorkspaceID, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		s.logger.Tracking().Warn("Unknown campaign id on tracked event", "campaignId", campaignID, "workspaceId", event.WorkspaceID)
		return nil
	}
	event.CampaignID = &campaign.ID
	return nil
}

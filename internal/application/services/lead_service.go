package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/email"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/performance"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
	"github.com/samber/lo"
)

// CaptureRequest is a lead capture submitted by a form.
type CaptureRequest struct {
	Email         string
	Name          string
	Phone         string
	VisitorID     string
	CookieID      string
	SessionID     string
	CapturedVia   string
	LandingPageID string
	CampaignID    string
	UTM           attribution.Touch
	CustomFields  map[string]any
	Tags          []string
	At            time.Time
}

// CaptureResult is the outcome of a capture.
type CaptureResult struct {
	LeadID      string
	IsNew       bool
	WorkspaceID string
}

// NormalizeEmail is the lead matching key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LeadService captures, merges and moves leads through the lifecycle.
type LeadService struct {
	store      repositories.Store
	resolver   *WorkspaceResolver
	identity   *IdentityService
	events     *EventLogger
	notifier   email.Notifier
	bestEffort *BestEffort
	tracker    *performance.Tracker
	logger     *logging.ChanneledLogger

	notifications sync.WaitGroup
}

func NewLeadService(
	store repositories.Store,
	resolver *WorkspaceResolver,
	identity *IdentityService,
	events *EventLogger,
	notifier email.Notifier,
	tracker *performance.Tracker,
	logger *logging.ChanneledLogger,
) *LeadService {
	if notifier == nil {
		notifier = email.NoopNotifier{}
	}
	return &LeadService{
		store:      store,
		resolver:   resolver,
		identity:   identity,
		events:     events,
		notifier:   notifier,
		bestEffort: NewBestEffort(logger, logging.ChannelNotify),
		tracker:    tracker,
		logger:     logger,
	}
}

// Capture creates the lead for a new email or merges into the existing one.
func (s *LeadService) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	marker := s.tracker.StartOperation("capture_lead", "")
	defer marker.Complete()

	normalized := NormalizeEmail(req.Email)
	if normalized == "" {
		err := apperrors.Validation(apperrors.CodeMissingEmail, "email is required")
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
	marker.WorkspaceID = scope.WorkspaceID

	var (
		result    *CaptureResult
		created   *user.Lead
		published []*analytics.Event
	)
	err = s.store.InTx(ctx, func(repos repositories.Repositories) error {
		result, created, published = nil, nil, nil

		existing, err := repos.Leads.FindByEmail(ctx, scope.WorkspaceID, normalized)
		if err != nil {
			return err
		}
		if existing == nil {
			lead, events, err := s.create(ctx, repos, scope, req, normalized)
			if err == nil {
				result = &CaptureResult{LeadID: lead.ID, IsNew: true, WorkspaceID: scope.WorkspaceID}
				created, published = lead, events
				return nil
			}
			if !apperrors.IsConflict(err) {
				return err
			}
			// Another capture of the same email won the insert.
			existing, err = repos.Leads.FindByEmail(ctx, scope.WorkspaceID, normalized)
			if err != nil {
				return err
			}
			if existing == nil {
				return apperrors.Internal("lead conflict without a matching row", err)
			}
		}

		events, err := s.merge(ctx, repos, scope, req, existing)
		if err != nil {
			return err
		}
		result = &CaptureResult{LeadID: existing.ID, WorkspaceID: scope.WorkspaceID}
		published = events
		return nil
	})
	if err != nil {
		marker.SetError(err)
		s.logger.Leads().Error("Lead capture failed", "workspaceId", scope.WorkspaceID, "email", logging.MaskEmail(normalized), "error", err.Error())
		return nil, err
	}

	s.events.Publish(published...)
	if result.IsNew {
		metrics.LeadsCaptured.WithLabelValues("created").Inc()
		s.logger.Leads().Info("Lead captured", "leadId", result.LeadID, "workspaceId", scope.WorkspaceID, "email", logging.MaskEmail(normalized))
		s.notifyNewLead(ctx, created)
	} else {
		metrics.LeadsCaptured.WithLabelValues("merged").Inc()
		s.logger.Leads().Info("Lead recaptured", "leadId", result.LeadID, "workspaceId", scope.WorkspaceID, "email", logging.MaskEmail(normalized))
	}
	marker.SetSuccess(true)
	return result, nil
}

func (s *LeadService) create(ctx context.Context, repos repositories.Repositories, scope *WorkspaceScope, req CaptureRequest, normalized string) (*user.Lead, []*analytics.Event, error) {
	ws := scope.WorkspaceID
	visitor, session, err := s.captureContext(ctx, repos, scope, req)
	if err != nil {
		return nil, nil, err
	}

	lead := &user.Lead{
		ID:             security.GenerateULID(),
		WorkspaceID:    ws,
		Email:          normalized,
		Name:           strings.TrimSpace(req.Name),
		Phone:          strings.TrimSpace(req.Phone),
		Stage:          user.StageCaptured,
		StageChangedAt: req.At,
		CustomFields:   lo.Assign(map[string]any{}, req.CustomFields),
		Tags:           MergeTags(nil, req.Tags),
		CapturedVia:    strings.TrimSpace(req.CapturedVia),
		CreatedAt:      req.At,
		UpdatedAt:      req.At,
	}

	var visitorFirst *attribution.Touch
	if visitor != nil {
		lead.VisitorID = &visitor.ID
		first := visitor.FirstTouch
		visitorFirst = &first
	}
	first := attribution.FirstTouchForLead(req.UTM, visitorFirst)
	lead.SetFirstTouch(first)
	lead.SetLastTouch(attribution.NextLastTouch(first, req.UTM))

	if err := repos.Leads.Create(ctx, lead); err != nil {
		return nil, nil, err
	}
	if err := repos.StageHistory.Append(ctx, &user.StageTransition{
		ID:          security.GenerateULID(),
		WorkspaceID: ws,
		LeadID:      lead.ID,
		ToStage:     user.StageCaptured,
		EnteredAt:   req.At,
	}); err != nil {
		return nil, nil, err
	}

	if visitor != nil {
		if err := repos.Visitors.LinkToLead(ctx, ws, visitor.ID, lead.ID, req.At); err != nil {
			return nil, nil, err
		}
	}
	if scope.LandingPage != nil {
		if err := repos.LandingPages.IncrementLeads(ctx, ws, scope.LandingPage.ID); err != nil {
			return nil, nil, err
		}
	}
	campaignID, err := s.countCampaignLead(ctx, repos, ws, req.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	sessionID, err := s.attachSession(ctx, repos, ws, session, visitor, lead.ID)
	if err != nil {
		return nil, nil, err
	}

	event := s.leadEvent(analytics.EventLeadCaptured, scope, lead, visitor, sessionID, campaignID, req)
	if err := s.events.Append(ctx, repos, event); err != nil {
		return nil, nil, err
	}
	return lead, []*analytics.Event{event}, nil
}

func (s *LeadService) merge(ctx context.Context, repos repositories.Repositories, scope *WorkspaceScope, req CaptureRequest, lead *user.Lead) ([]*analytics.Event, error) {
	ws := scope.WorkspaceID
	visitor, session, err := s.captureContext(ctx, repos, scope, req)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		lead.Name = name
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		lead.Phone = phone
	}
	lead.SetLastTouch(attribution.NextLastTouch(lead.LastTouch(), req.UTM))
	lead.CustomFields = lo.Assign(lead.CustomFields, req.CustomFields)
	lead.Tags = MergeTags(lead.Tags, req.Tags)
	if lead.VisitorID == nil && visitor != nil {
		lead.VisitorID = &visitor.ID
	}
	lead.UpdatedAt = req.At

	if err := repos.Leads.Update(ctx, lead); err != nil {
		return nil, err
	}
	if visitor != nil {
		if err := repos.Visitors.LinkToLead(ctx, ws, visitor.ID, lead.ID, req.At); err != nil {
			return nil, err
		}
	}
	sessionID, err := s.attachSession(ctx, repos, ws, session, visitor, lead.ID)
	if err != nil {
		return nil, err
	}

	campaignID := ""
	if req.CampaignID != "" {
		campaign, err := repos.Campaigns.FindByID(ctx, ws, req.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign != nil {
			campaignID = campaign.ID
		}
	}

	event := s.leadEvent(analytics.EventLeadRecaptured, scope, lead, visitor, sessionID, campaignID, req)
	if err := s.events.Append(ctx, repos, event); err != nil {
		return nil, err
	}
	return []*analytics.Event{event}, nil
}

// captureContext resolves the visitor and session a capture refers to. The
// visitor comes from visitorId, then cookieId, then the named session's owner.
// Capture never creates a visitor.
func (s *LeadService) captureContext(ctx context.Context, repos repositories.Repositories, scope *WorkspaceScope, req CaptureRequest) (*user.Visitor, *user.Session, error) {
	ws := scope.WorkspaceID
	visitor, err := s.identity.VisitorForLead(ctx, repos, ws, req.VisitorID, req.CookieID)
	if err != nil {
		return nil, nil, err
	}

	session := scope.Session
	if session == nil && req.SessionID != "" {
		session, err = repos.Sessions.FindByID(ctx, ws, req.SessionID)
		if err != nil {
			return nil, nil, err
		}
	}
	if visitor == nil && session != nil {
		visitor, err = repos.Visitors.FindByID(ctx, ws, session.VisitorID)
		if err != nil {
			return nil, nil, err
		}
	}
	return visitor, session, nil
}

// attachSession links the capture's session to the lead when it belongs to
// the capturing visitor.
func (s *LeadService) attachSession(ctx context.Context, repos repositories.Repositories, workspaceID string, session *user.Session, visitor *user.Visitor, leadID string) (string, error) {
	if session == nil || visitor == nil || session.VisitorID != visitor.ID {
		return "", nil
	}
	if err := repos.Sessions.AttachLead(ctx, workspaceID, session.ID, leadID); err != nil {
		return "", err
	}
	return session.ID, nil
}

func (s *LeadService) countCampaignLead(ctx context.Context, repos repositories.Repositories, workspaceID, campaignID string) (string, error) {
	if campaignID == "" {
		return "", nil
	}
	campaign, err := repos.Campaigns.FindByID(ctx, workspaceID, campaignID)
	if err != nil {
		return "", err
	}
	if campaign == nil {
		s.logger.Leads().Warn("Unknown campaign on capture", "campaignId", campaignID, "workspaceId", workspaceID)
		return "", nil
	}
	if err := repos.Campaigns.IncrementLeads(ctx, workspaceID, campaign.ID); err != nil {
		return "", err
	}
	return campaign.ID, nil
}

func (s *LeadService) leadEvent(eventType analytics.EventType, scope *WorkspaceScope, lead *user.Lead, visitor *user.Visitor, sessionID, campaignID string, req CaptureRequest) *analytics.Event {
	event := &analytics.Event{
		WorkspaceID: scope.WorkspaceID,
		LeadID:      &lead.ID,
		Type:        eventType,
		Metadata:    map[string]any{},
		CreatedAt:   req.At,
	}
	if visitor != nil {
		event.VisitorID = visitor.ID
	}
	if sessionID != "" {
		event.SessionID = &sessionID
	}
	if scope.LandingPage != nil {
		event.LandingPageID = &scope.LandingPage.ID
	}
	if campaignID != "" {
		event.CampaignID = &campaignID
	}
	if via := strings.TrimSpace(req.CapturedVia); via != "" {
		event.Metadata[analytics.MetaCapturedVia] = via
	}
	if utm := req.UTM.Normalize(); utm.HasCampaignData() {
		event.Metadata[analytics.MetaUTM] = TouchMetadata(utm)
	}
	return event
}

// MergeTags returns the union of existing and incoming, keeping first-seen order.
func MergeTags(existing, incoming []string) []string {
	cleaned := lo.FilterMap(incoming, func(tag string, _ int) (string, bool) {
		tag = strings.TrimSpace(tag)
		return tag, tag != ""
	})
	return lo.Uniq(append(append([]string{}, existing...), cleaned...))
}

func (s *LeadService) notifyNewLead(ctx context.Context, lead *user.Lead) {
	if lead == nil {
		return
	}
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		s.bestEffort.Run(context.WithoutCancel(ctx), "notify_new_lead", func(ctx context.Context) error {
			workspace, err := s.store.Repos().Workspaces.FindByID(ctx, lead.WorkspaceID)
			if err != nil {
				return err
			}
			if workspace == nil {
				return nil
			}
			return s.notifier.NotifyNewLead(ctx, email.NewLeadNotice{
				To:            workspace.NotifyEmail,
				WorkspaceName: workspace.Name,
				LeadID:        lead.ID,
				Email:         lead.Email,
				Name:          lead.Name,
				Source:        lead.FirstSource,
				Medium:        lead.FirstMedium,
				Campaign:      lead.FirstCampaign,
				CapturedVia:   lead.CapturedVia,
				CapturedAt:    lead.CreatedAt,
			})
		})
	}()
}

// WaitNotifications blocks until in-flight new-lead notifications finish.
func (s *LeadService) WaitNotifications() {
	s.notifications.Wait()
}

// Get fetches a lead by id, or by email when id is empty.
func (s *LeadService) Get(ctx context.Context, workspaceID, id, emailAddr string) (*user.Lead, error) {
	repos := s.store.Repos()

	var (
		lead *user.Lead
		err  error
	)
	switch {
	case strings.TrimSpace(id) != "":
		lead, err = repos.Leads.FindByID(ctx, workspaceID, strings.TrimSpace(id))
	case NormalizeEmail(emailAddr) != "":
		lead, err = repos.Leads.FindByEmail(ctx, workspaceID, NormalizeEmail(emailAddr))
	default:
		return nil, apperrors.Validation(apperrors.CodeMissingLookupKey, "id or email is required")
	}
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NotFound(apperrors.CodeLeadNotFound, "lead not found")
	}
	return lead, nil
}

// ChangeStage moves a lead to stage. Any stage may follow any other; moving to
// the current stage is a no-op.
func (s *LeadService) ChangeStage(ctx context.Context, workspaceID, leadID, stage string) (*user.Lead, error) {
	to, ok := user.ParseStage(stage)
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeInvalidStage, "unknown stage")
	}

	marker := s.tracker.StartOperation("change_stage", workspaceID)
	defer marker.Complete()

	var (
		lead      *user.Lead
		published []*analytics.Event
	)
	at := time.Now().UTC()
	err := s.store.InTx(ctx, func(repos repositories.Repositories) error {
		published = nil
		found, err := repos.Leads.FindByID(ctx, workspaceID, leadID)
		if err != nil {
			return err
		}
		if found == nil {
			return apperrors.NotFound(apperrors.CodeLeadNotFound, "lead not found")
		}
		event, err := s.transition(ctx, repos, found, to, at)
		if err != nil {
			return err
		}
		if event != nil {
			published = append(published, event)
		}
		lead = found
		return nil
	})
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	s.events.Publish(published...)
	CountTransitions(published)
	marker.SetSuccess(true)
	return lead, nil
}

// transition records lead moving to stage within repos' transaction and
// returns the stage_changed event, or nil when the stage is unchanged.
func (s *LeadService) transition(ctx context.Context, repos repositories.Repositories, lead *user.Lead, to user.Stage, at time.Time) (*analytics.Event, error) {
	from := lead.Stage
	if from == to {
		return nil, nil
	}

	if err := repos.StageHistory.CloseOpen(ctx, lead.WorkspaceID, lead.ID, at); err != nil {
		return nil, err
	}
	if err := repos.StageHistory.Append(ctx, &user.StageTransition{
		ID:          security.GenerateULID(),
		WorkspaceID: lead.WorkspaceID,
		LeadID:      lead.ID,
		FromStage:   &from,
		ToStage:     to,
		EnteredAt:   at,
	}); err != nil {
		return nil, err
	}
	if err := repos.Leads.UpdateStage(ctx, lead.WorkspaceID, lead.ID, to, at); err != nil {
		return nil, err
	}

	direction := user.DirectionOf(from, to)
	event := &analytics.Event{
		WorkspaceID: lead.WorkspaceID,
		LeadID:      &lead.ID,
		Type:        analytics.EventStageChanged,
		Metadata: map[string]any{
			analytics.MetaFromStage: string(from),
			analytics.MetaToStage:   string(to),
			analytics.MetaDirection: string(direction),
		},
		CreatedAt: at,
	}
	if lead.VisitorID != nil {
		event.VisitorID = *lead.VisitorID
	}
	if err := s.events.Append(ctx, repos, event); err != nil {
		return nil, err
	}

	lead.Stage = to
	lead.StageChangedAt = at
	s.logger.Leads().Info("Lead stage changed", "leadId", lead.ID, "from", from, "to", to, "direction", direction)
	return event, nil
}

// CountTransitions records committed stage_changed events in the metrics.
func CountTransitions(events []*analytics.Event) {
	for _, e := range events {
		if e.Type != analytics.EventStageChanged {
			continue
		}
		direction, _ := e.Metadata[analytics.MetaDirection].(string)
		metrics.StageTransitions.WithLabelValues(direction).Inc()
	}
}

// History returns a lead's stage transitions, oldest first.
func (s *LeadService) History(ctx context.Context, workspaceID, leadID string) ([]*user.StageTransition, error) {
	repos := s.store.Repos()
	lead, err := repos.Leads.FindByID(ctx, workspaceID, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NotFound(apperrors.CodeLeadNotFound, "lead not found")
	}
	return repos.StageHistory.FindByLead(ctx, workspaceID, leadID)
}

// RecordPurchase adds a purchase to the lead's lifetime value and moves it to
// customer. It runs inside the caller's transaction; an unknown lead is
// reported as a nil lead with no error.
func (s *LeadService) RecordPurchase(ctx context.Context, repos repositories.Repositories, workspaceID, leadID string, amount float64, at time.Time) (*user.Lead, []*analytics.Event, error) {
	lead, err := repos.Leads.FindByID(ctx, workspaceID, leadID)
	if err != nil || lead == nil {
		return nil, nil, err
	}
	if err := repos.Leads.RecordPurchase(ctx, workspaceID, leadID, amount, at); err != nil {
		return nil, nil, err
	}
	lead.LifetimeValue += amount
	lead.PurchaseCount++

	if lead.Stage == user.StageCustomer {
		return lead, nil, nil
	}
	event, err := s.transition(ctx, repos, lead, user.StageCustomer, at)
	if err != nil {
		return nil, nil, err
	}
	return lead, []*analytics.Event{event}, nil
}

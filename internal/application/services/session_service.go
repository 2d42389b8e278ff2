package services

import (
	"context"
	"time"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
)

// SessionRequest is the session-relevant part of one tracked event.
type SessionRequest struct {
	WorkspaceID string
	VisitorID   string
	SessionID   string
	EventType   analytics.EventType
	Touch       attribution.Touch
	EntryURL    string
	URL         string
	Device      user.Device
	Geo         user.Geo
	ScrollDepth *int
	At          time.Time
}

// SessionResult reports the session an event was attached to, if any.
type SessionResult struct {
	SessionID string
	Opened    bool
}

// SessionService opens and extends visitor sessions.
type SessionService struct {
	logger *logging.ChanneledLogger
}

func NewSessionService(logger *logging.ChanneledLogger) *SessionService {
	return &SessionService{logger: logger}
}

// Track attaches the event to a session. A known session id owned by the
// visitor is extended. Otherwise a page view opens a new session and anything
// else returns nil, so the event is logged without a session link.
func (s *SessionService) Track(ctx context.Context, repos repositories.Repositories, req SessionRequest) (*SessionResult, error) {
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}
	activity := user.SessionActivity{
		PageView:    req.EventType == analytics.EventPageView,
		ScrollDepth: clampScroll(req.ScrollDepth),
		URL:         req.URL,
		At:          req.At,
	}

	if req.SessionID != "" {
		session, err := repos.Sessions.FindByID(ctx, req.WorkspaceID, req.SessionID)
		if err != nil {
			return nil, err
		}
		switch {
		case session == nil:
			s.logger.Tracking().Warn("Unknown session id, treating as no session", "sessionId", req.SessionID, "workspaceId", req.WorkspaceID)
		case session.VisitorID != req.VisitorID:
			s.logger.Tracking().Warn("Session belongs to another visitor, treating as no session",
				"sessionId", req.SessionID, "visitorId", req.VisitorID, "workspaceId", req.WorkspaceID)
		default:
			if err := repos.Sessions.RecordActivity(ctx, req.WorkspaceID, session.ID, activity); err != nil {
				return nil, err
			}
			return &SessionResult{SessionID: session.ID}, nil
		}
	}

	if !req.EventType.OpensSession() {
		return nil, nil
	}

	entryURL := req.EntryURL
	if entryURL == "" {
		entryURL = req.URL
	}
	session := &user.Session{
		ID:          security.GenerateULID(),
		WorkspaceID: req.WorkspaceID,
		VisitorID:   req.VisitorID,
		Touch:       req.Touch.Normalize(),
		EntryURL:    entryURL,
		ExitURL:     req.URL,
		Device:      req.Device,
		Geo:         req.Geo,
		StartedAt:   req.At,
		EndedAt:     req.At,
	}
	if err := repos.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := repos.Sessions.RecordActivity(ctx, req.WorkspaceID, session.ID, activity); err != nil {
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	s.logger.Tracking().Info("Session opened", "sessionId", session.ID, "visitorId", req.VisitorID, "workspaceId", req.WorkspaceID)
	return &SessionResult{SessionID: session.ID, Opened: true}, nil
}

// clampScroll bounds a reported scroll depth to a percentage.
func clampScroll(depth *int) *int {
	if depth == nil {
		return nil
	}
	d := *depth
	if d < 0 {
		d = 0
	}
	if d > 100 {
		d = 100
	}
	return &d
}

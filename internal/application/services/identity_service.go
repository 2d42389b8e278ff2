package services

import (
	"context"
	"strings"
	"time"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
)

// IdentityRequest carries the identity fields of one beacon call.
type IdentityRequest struct {
	WorkspaceID     string
	VisitorID       string
	CookieID        string
	FingerprintHash string
	Touch           attribution.Touch // first touch for a newly created visitor
	At              time.Time
}

func (r IdentityRequest) hasIdentity() bool {
	return r.VisitorID != "" || r.CookieID != "" || r.FingerprintHash != ""
}

// IdentityResult is the resolved visitor.
type IdentityResult struct {
	VisitorID string
	Created   bool
}

// IdentityService maps cookie / fingerprint identities to durable visitors.
type IdentityService struct {
	logger *logging.ChanneledLogger
}

func NewIdentityService(logger *logging.ChanneledLogger) *IdentityService {
	return &IdentityService{logger: logger}
}

// Resolve returns a visitor id usable for every write in the request. Exactly
// one visitor row is created or one row's last_seen_at is touched.
func (s *IdentityService) Resolve(ctx context.Context, repos repositories.Repositories, req IdentityRequest) (*IdentityResult, error) {
	req.VisitorID = strings.TrimSpace(req.VisitorID)
	req.CookieID = strings.TrimSpace(req.CookieID)
	req.FingerprintHash = strings.TrimSpace(req.FingerprintHash)
	if !req.hasIdentity() {
		return nil, apperrors.Validation(apperrors.CodeMissingIdentity, "one of visitorId, cookieId or fingerprintHash is required")
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	if req.VisitorID != "" {
		visitor, err := repos.Visitors.FindByID(ctx, req.WorkspaceID, req.VisitorID)
		if err != nil {
			return nil, err
		}
		if visitor != nil {
			return s.touch(ctx, repos, req, visitor.ID)
		}
		s.logger.Tracking().Warn("Supplied visitor id not found in workspace", "visitorId", req.VisitorID, "workspaceId", req.WorkspaceID)
		if req.CookieID == "" && req.FingerprintHash == "" {
			return nil, apperrors.NotFound(apperrors.CodeVisitorNotFound, "visitor not found")
		}
	}

	existing, err := s.lookup(ctx, repos, req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.touch(ctx, repos, req, existing.ID)
	}

	visitor := &user.Visitor{
		ID:          security.GenerateULID(),
		WorkspaceID: req.WorkspaceID,
		FirstTouch:  req.Touch.Normalize(),
		FirstSeenAt: req.At,
		LastSeenAt:  req.At,
	}
	if req.CookieID != "" {
		visitor.CookieID = &req.CookieID
	}
	if req.FingerprintHash != "" {
		visitor.FingerprintHash = &req.FingerprintHash
	}

	err = repos.Visitors.Create(ctx, visitor)
	if apperrors.IsConflict(err) {
		// A concurrent request created the same identity first.
		metrics.VisitorsResolved.WithLabelValues("race").Inc()
		existing, lookupErr := s.lookup(ctx, repos, req)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, apperrors.Internal("visitor conflict without a matching row", err)
		}
		return s.touch(ctx, repos, req, existing.ID)
	}
	if err != nil {
		return nil, err
	}

	metrics.VisitorsResolved.WithLabelValues("created").Inc()
	s.logger.Tracking().Info("Visitor created", "visitorId", visitor.ID, "workspaceId", req.WorkspaceID)
	return &IdentityResult{VisitorID: visitor.ID, Created: true}, nil
}

// lookup tries the cookie first, then the fingerprint.
func (s *IdentityService) lookup(ctx context.Context, repos repositories.Repositories, req IdentityRequest) (*user.Visitor, error) {
	if req.CookieID != "" {
		visitor, err := repos.Visitors.FindByCookieID(ctx, req.WorkspaceID, req.CookieID)
		if err != nil || visitor != nil {
			return visitor, err
		}
	}
	if req.FingerprintHash != "" {
		return repos.Visitors.FindByFingerprint(ctx, req.WorkspaceID, req.FingerprintHash)
	}
	return nil, nil
}

func (s *IdentityService) touch(ctx context.Context, repos repositories.Repositories, req IdentityRequest, visitorID string) (*IdentityResult, error) {
	if err := repos.Visitors.TouchLastSeen(ctx, req.WorkspaceID, visitorID, req.At); err != nil {
		return nil, err
	}
	metrics.VisitorsResolved.WithLabelValues("existing").Inc()
	return &IdentityResult{VisitorID: visitorID}, nil
}

// VisitorForLead resolves a visitor for lead capture without creating one.
func (s *IdentityService) VisitorForLead(ctx context.Context, repos repositories.Repositories, workspaceID, visitorID, cookieID string) (*user.Visitor, error) {
	if visitorID = strings.TrimSpace(visitorID); visitorID != "" {
		visitor, err := repos.Visitors.FindByID(ctx, workspaceID, visitorID)
		if err != nil || visitor != nil {
			return visitor, err
		}
	}
	if cookieID = strings.TrimSpace(cookieID); cookieID != "" {
		return repos.Visitors.FindByCookieID(ctx, workspaceID, cookieID)
	}
	return nil, nil
}

package services

import (
	"context"

	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/entities/content"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/domain/user"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

// WorkspaceScope is the tenant context of a beacon call.
type WorkspaceScope struct {
	WorkspaceID string
	LandingPage *content.LandingPage // nil when resolved through a session
	Session     *user.Session        // set when resolved through a session
}

// WorkspaceResolver maps the tenant-resolving fields of a beacon payload to a
// workspace. Landing page lookups go through the TTL cache wired into the
// landing page repository.
type WorkspaceResolver struct {
	store  repositories.Store
	logger *logging.ChanneledLogger
}

func NewWorkspaceResolver(store repositories.Store, logger *logging.ChanneledLogger) *WorkspaceResolver {
	return &WorkspaceResolver{store: store, logger: logger}
}

// Resolve prefers landingPageID and falls back to sessionID.
func (r *WorkspaceResolver) Resolve(ctx context.Context, landingPageID, sessionID string) (*WorkspaceScope, error) {
	repos := r.store.Repos()

	if landingPageID != "" {
		page, err := repos.LandingPages.FindByID(ctx, landingPageID)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return nil, apperrors.NotFound(apperrors.CodeLandingPageNotFound, "landing page not found")
		}
		return &WorkspaceScope{WorkspaceID: page.WorkspaceID, LandingPage: page}, nil
	}

	if sessionID != "" {
		session, err := repos.Sessions.FindByIDAnyWorkspace(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return &WorkspaceScope{WorkspaceID: session.WorkspaceID, Session: session}, nil
		}
		r.logger.Tracking().Warn("Session id did not resolve a workspace", "sessionId", sessionID)
	}

	return nil, apperrors.Validation(apperrors.CodeMissingWorkspace, "landingPageId is required")
}


package services

import (
	"context"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

// AttributionReport compares a lead's denormalized touches with the touches
// rebuilt from its event and session stream.
type AttributionReport struct {
	LeadID          string            `json:"leadId"`
	StoredFirst     attribution.Touch `json:"storedFirstTouch"`
	StoredLast      attribution.Touch `json:"storedLastTouch"`
	RebuiltFirst    attribution.Touch `json:"rebuiltFirstTouch"`
	RebuiltLast     attribution.Touch `json:"rebuiltLastTouch"`
	Observations    int               `json:"observations"`
	Consistent      bool              `json:"consistent"`
	RebuildComplete bool              `json:"rebuildComplete"`
}

type AttributionService struct {
	store  repositories.Store
	logger *logging.ChanneledLogger
}

func NewAttributionService(store repositories.Store, logger *logging.ChanneledLogger) *AttributionService {
	return &AttributionService{store: store, logger: logger}
}

// Rebuild recomputes first and last touch for a lead from events and the
// sessions of its visitor.
func (s *AttributionService) Rebuild(ctx context.Context, workspaceID, leadID string) (*AttributionReport, error) {
	repos := s.store.Repos()

	lead, err := repos.Leads.FindByID(ctx, workspaceID, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NotFound(apperrors.CodeLeadNotFound, "lead not found")
	}

	events, err := repos.Events.FindByLead(ctx, workspaceID, leadID)
	if err != nil {
		return nil, err
	}

	var observations []attribution.Observation
	if lead.VisitorID != nil {
		visitorEvents, err := repos.Events.FindByVisitor(ctx, workspaceID, *lead.VisitorID)
		if err != nil {
			return nil, err
		}
		events = append(events, visitorEvents...)

		sessions, err := repos.Sessions.FindByVisitor(ctx, workspaceID, *lead.VisitorID)
		if err != nil {
			return nil, err
		}
		for _, session := range sessions {
			observations = append(observations, attribution.Observation{Touch: session.Touch, At: session.StartedAt})
		}
	}
	observations = append(observations, eventObservations(events)...)

	report := &AttributionReport{
		LeadID:       lead.ID,
		StoredFirst:  lead.FirstTouch(),
		StoredLast:   lead.LastTouch(),
		Observations: len(observations),
	}
	first, last, ok := attribution.Rebuild(observations)
	report.RebuildComplete = ok
	if ok {
		report.RebuiltFirst = first
		report.RebuiltLast = last
		report.Consistent = attribution.SameChannel(first, report.StoredFirst) && attribution.SameChannel(last, report.StoredLast)
	} else {
		report.Consistent = !report.StoredFirst.HasCampaignData() && !report.StoredLast.HasCampaignData()
	}

	if !report.Consistent {
		s.logger.Leads().Warn("Denormalized attribution differs from event stream", "leadId", lead.ID, "workspaceId", workspaceID)
	}
	return report, nil
}

// eventObservations extracts utm-bearing events, once per event id.
func eventObservations(events []*analytics.Event) []attribution.Observation {
	seen := make(map[string]bool, len(events))
	var observations []attribution.Observation
	for _, e := range events {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		touch, ok := TouchFromMetadata(e.Metadata)
		if !ok {
			continue
		}
		observations = append(observations, attribution.Observation{Touch: touch, At: e.CreatedAt, Seq: e.Seq})
	}
	return observations
}

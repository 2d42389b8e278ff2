package services

import (
	"context"
	"time"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/domain/repositories"
	"github.com/mikahq/mika-go/internal/infrastructure/messaging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
	"github.com/samber/lo"
)

// Engagement holds the beacon's engagement sub-fields, folded into metadata.
type Engagement struct {
	ScrollDepth    *int
	TimeOnPage     *float64
	ElementClicked string
	UTM            attribution.Touch
	Referrer       string
}

// FoldMetadata returns a copy of metadata with the engagement fields added.
// Unknown caller keys are kept as-is; engagement keys take precedence.
func FoldMetadata(metadata map[string]any, e Engagement) map[string]any {
	folded := lo.Assign(map[string]any{}, metadata)
	if e.ScrollDepth != nil {
		folded[analytics.MetaScrollDepth] = *e.ScrollDepth
	}
	if e.TimeOnPage != nil {
		folded[analytics.MetaTimeOnPage] = *e.TimeOnPage
	}
	if e.ElementClicked != "" {
		folded[analytics.MetaElementClicked] = e.ElementClicked
	}
	if utm := e.UTM.Normalize(); utm.HasCampaignData() {
		folded[analytics.MetaUTM] = TouchMetadata(utm)
	}
	if e.Referrer != "" {
		folded[analytics.MetaReferrer] = e.Referrer
	}
	return folded
}

// TouchMetadata renders the UTM part of a touch for the metadata bag.
func TouchMetadata(t attribution.Touch) map[string]any {
	m := map[string]any{}
	for k, v := range map[string]string{
		"source": t.Source, "medium": t.Medium, "campaign": t.Campaign, "content": t.Content, "term": t.Term,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// TouchFromMetadata reads back a touch written by TouchMetadata.
func TouchFromMetadata(metadata map[string]any) (attribution.Touch, bool) {
	raw, ok := metadata[analytics.MetaUTM].(map[string]any)
	if !ok {
		return attribution.Touch{}, false
	}
	str := func(k string) string {
		s, _ := raw[k].(string)
		return s
	}
	t := attribution.Touch{
		Source:   str("source"),
		Medium:   str("medium"),
		Campaign: str("campaign"),
		Content:  str("content"),
		Term:     str("term"),
	}
	return t, t.HasCampaignData()
}

// EventLogger appends events to the stream and publishes them to the live
// feed once the surrounding transaction has committed.
type EventLogger struct {
	publisher messaging.Publisher
	logger    *logging.ChanneledLogger
}

func NewEventLogger(publisher messaging.Publisher, logger *logging.ChanneledLogger) *EventLogger {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &EventLogger{publisher: publisher, logger: logger}
}

// Append assigns id and timestamp when absent and writes the event.
func (l *EventLogger) Append(ctx context.Context, repos repositories.Repositories, event *analytics.Event) error {
	if event.ID == "" {
		event.ID = security.GenerateULID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := repos.Events.Append(ctx, event); err != nil {
		return err
	}
	metrics.EventsAppended.WithLabelValues(string(event.Type)).Inc()
	l.logger.Tracking().Debug("Event appended", "eventId", event.ID, "type", event.Type, "workspaceId", event.WorkspaceID)
	return nil
}

// Publish forwards committed events to live subscribers.
func (l *EventLogger) Publish(events ...*analytics.Event) {
	for _, e := range events {
		l.publisher.Publish(e)
	}
}

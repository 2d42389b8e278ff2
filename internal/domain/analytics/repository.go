// Package analytics defines the immutable event stream and the interface for
// appending to and reading from it.
package analytics

import (
	"context"
	"strings"
	"time"
)

// EventType enumerates the kinds of facts the pipeline records.
type EventType string

const (
	EventSessionStart      EventType = "session_start"
	EventSessionEnd        EventType = "session_end"
	EventPageView          EventType = "page_view"
	EventScroll            EventType = "scroll"
	EventClick             EventType = "click"
	EventFormStart         EventType = "form_start"
	EventFormSubmit        EventType = "form_submit"
	EventConversion        EventType = "conversion"
	EventSignup            EventType = "signup"
	EventPurchase          EventType = "purchase"
	EventVideoPlay         EventType = "video_play"
	EventCustom            EventType = "custom"
	EventLeadCaptured      EventType = "lead_captured"
	EventLeadRecaptured    EventType = "lead_recaptured"
	EventStageChanged      EventType = "stage_changed"
	EventAffiliateRedirect EventType = "affiliate_redirect"
)

// beaconTypes are the types accepted from the public track endpoint. Lead and
// stage events are only written by the server itself.
var beaconTypes = map[EventType]bool{
	EventSessionStart: true,
	EventSessionEnd:   true,
	EventPageView:     true,
	EventScroll:       true,
	EventClick:        true,
	EventFormStart:    true,
	EventFormSubmit:   true,
	EventConversion:   true,
	EventSignup:       true,
	EventPurchase:     true,
	EventVideoPlay:    true,
	EventCustom:       true,
}

// ParseBeaconType validates an event type submitted by the beacon.
func ParseBeaconType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	return t, beaconTypes[t]
}

// OpensSession reports whether an event of this type starts a visit when no
// session id is known.
func (t EventType) OpensSession() bool { return t == EventPageView }

// Event is a write-once fact. Events are never updated or deleted.
type Event struct {
	ID            string         `json:"id"`
	WorkspaceID   string         `json:"workspaceId"`
	VisitorID     string         `json:"visitorId,omitempty"`
	SessionID     *string        `json:"sessionId,omitempty"`
	LeadID        *string        `json:"leadId,omitempty"`
	LandingPageID *string        `json:"landingPageId,omitempty"`
	CampaignID    *string        `json:"campaignId,omitempty"`
	Type          EventType      `json:"type"`
	Name          string         `json:"name,omitempty"`
	Value         *float64       `json:"value,omitempty"`
	URL           string         `json:"url,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"createdAt"`
	// Seq is the storage insertion order, used to break timestamp ties.
	Seq int64 `json:"-"`
}

// Metadata keys folded in from engagement fields.
const (
	MetaScrollDepth    = "scrollDepth"
	MetaTimeOnPage     = "timeOnPage"
	MetaElementClicked = "elementClicked"
	MetaUTM            = "utm"
	MetaReferrer       = "referrer"
	MetaDestination    = "destination"
	MetaAffiliateID    = "affiliateId"
	MetaRedirectSource = "src"
	MetaRedirectMedium = "med"
	MetaFromStage      = "fromStage"
	MetaToStage        = "toStage"
	MetaDirection      = "direction"
	MetaCapturedVia    = "capturedVia"
)

// EventRepository defines the contract for the append-only event stream.
// Reads return events in submission order: created_at, then insertion order.
type EventRepository interface {
	Append(ctx context.Context, event *Event) error
	FindByVisitor(ctx context.Context, workspaceID, visitorID string) ([]*Event, error)
	FindBySession(ctx context.Context, workspaceID, sessionID string) ([]*Event, error)
	FindByLead(ctx context.Context, workspaceID, leadID string) ([]*Event, error)
}

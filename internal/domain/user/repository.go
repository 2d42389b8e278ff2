// Package user defines the visitor, session and lead entities and the interfaces
// for persisting them. Every lookup is scoped to a workspace.
package user

import (
	"context"
	"time"

	"github.com/mikahq/mika-go/internal/domain/attribution"
)

// Visitor is an anonymous browser/device identity.
type Visitor struct {
	ID                string            `json:"id"`
	WorkspaceID       string            `json:"workspaceId"`
	CookieID          *string           `json:"cookieId,omitempty"`
	FingerprintHash   *string           `json:"fingerprintHash,omitempty"`
	FirstTouch        attribution.Touch `json:"firstTouch"`
	ConvertedToLeadID *string           `json:"convertedToLeadId,omitempty"` // back-reference, not ownership
	ConvertedAt       *time.Time        `json:"convertedAt,omitempty"`
	FirstSeenAt       time.Time         `json:"firstSeenAt"`
	LastSeenAt        time.Time         `json:"lastSeenAt"`
}

// Device is the client snapshot reported by the beacon.
type Device struct {
	Type    string `json:"type,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Geo is the location snapshot reported by the beacon.
type Geo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// Session is a bounded visiting episode of one visitor.
type Session struct {
	ID             string            `json:"id"`
	WorkspaceID    string            `json:"workspaceId"`
	VisitorID      string            `json:"visitorId"`
	LeadID         *string           `json:"leadId,omitempty"`
	Touch          attribution.Touch `json:"touch"`
	EntryURL       string            `json:"entryUrl,omitempty"`
	ExitURL        string            `json:"exitUrl,omitempty"`
	Device         Device            `json:"device"`
	Geo            Geo               `json:"geo"`
	PageViews      int               `json:"pageViews"`
	EventCount     int               `json:"eventCount"`
	MaxScrollDepth int               `json:"maxScrollDepth"`
	StartedAt      time.Time         `json:"startedAt"`
	EndedAt        time.Time         `json:"endedAt"`
}

// SessionActivity is the incremental update applied to a session for one event.
type SessionActivity struct {
	PageView    bool
	ScrollDepth *int
	URL         string
	At          time.Time
}

// Lead is an identified contact, keyed by normalized email within a workspace.
type Lead struct {
	ID               string         `json:"id"`
	WorkspaceID      string         `json:"workspaceId"`
	VisitorID        *string        `json:"visitorId,omitempty"`
	Email            string         `json:"email"`
	Name             string         `json:"name,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Stage            Stage          `json:"stage"`
	StageChangedAt   time.Time      `json:"stageChangedAt"`
	BehaviorScore    int            `json:"behaviorScore"`
	DemographicScore int            `json:"demographicScore"`
	TotalScore       int            `json:"totalScore"`
	FirstSource      string         `json:"firstSource,omitempty"`
	FirstMedium      string         `json:"firstMedium,omitempty"`
	FirstCampaign    string         `json:"firstCampaign,omitempty"`
	LastSource       string         `json:"lastSource,omitempty"`
	LastMedium       string         `json:"lastMedium,omitempty"`
	LastCampaign     string         `json:"lastCampaign,omitempty"`
	LifetimeValue    float64        `json:"lifetimeValue"`
	PurchaseCount    int            `json:"purchaseCount"`
	CustomFields     map[string]any `json:"customFields"`
	Tags             []string       `json:"tags"`
	CapturedVia      string         `json:"capturedVia,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// FirstTouch returns the denormalized first-touch triple.
func (l *Lead) FirstTouch() attribution.Touch {
	return attribution.Touch{Source: l.FirstSource, Medium: l.FirstMedium, Campaign: l.FirstCampaign}
}

// LastTouch returns the denormalized last-touch triple.
func (l *Lead) LastTouch() attribution.Touch {
	return attribution.Touch{Source: l.LastSource, Medium: l.LastMedium, Campaign: l.LastCampaign}
}

// SetFirstTouch copies t into the first-touch fields. Only called at creation.
func (l *Lead) SetFirstTouch(t attribution.Touch) {
	l.FirstSource, l.FirstMedium, l.FirstCampaign = t.Source, t.Medium, t.Campaign
}

// SetLastTouch copies t into the last-touch fields.
func (l *Lead) SetLastTouch(t attribution.Touch) {
	l.LastSource, l.LastMedium, l.LastCampaign = t.Source, t.Medium, t.Campaign
}

// StageTransition is one row of a lead's stage history.
type StageTransition struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspaceId"`
	LeadID          string     `json:"leadId"`
	FromStage       *Stage     `json:"fromStage,omitempty"`
	ToStage         Stage      `json:"toStage"`
	EnteredAt       time.Time  `json:"enteredAt"`
	ExitedAt        *time.Time `json:"exitedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

// VisitorRepository defines the operations for persisting Visitor entities.
// Create returns an apperrors conflict when (workspace, cookie) or
// (workspace, fingerprint) is already taken.
type VisitorRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*Visitor, error)
	FindByCookieID(ctx context.Context, workspaceID, cookieID string) (*Visitor, error)
	FindByFingerprint(ctx context.Context, workspaceID, fingerprintHash string) (*Visitor, error)
	Create(ctx context.Context, visitor *Visitor) error
	TouchLastSeen(ctx context.Context, workspaceID, id string, seenAt time.Time) error
	// LinkToLead sets the conversion back-reference once; later calls never overwrite it.
	LinkToLead(ctx context.Context, workspaceID, visitorID, leadID string, at time.Time) error
}

// SessionRepository defines the operations for persisting Session entities.
type SessionRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*Session, error)
	// FindByIDAnyWorkspace is used only to resolve the workspace of a beacon call
	// that carries nothing but a session id.
	FindByIDAnyWorkspace(ctx context.Context, id string) (*Session, error)
	FindByVisitor(ctx context.Context, workspaceID, visitorID string) ([]*Session, error)
	Create(ctx context.Context, session *Session) error
	RecordActivity(ctx context.Context, workspaceID, id string, activity SessionActivity) error
	AttachLead(ctx context.Context, workspaceID, sessionID, leadID string) error
}

// LeadRepository defines the operations for persisting Lead entities.
// Create returns an apperrors conflict when the email already exists in the workspace.
type LeadRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*Lead, error)
	// FindByIDAnyWorkspace is used only by the redirect tracker, whose links
	// carry nothing but the lead id.
	FindByIDAnyWorkspace(ctx context.Context, id string) (*Lead, error)
	FindByEmail(ctx context.Context, workspaceID, email string) (*Lead, error)
	Create(ctx context.Context, lead *Lead) error
	Update(ctx context.Context, lead *Lead) error
	UpdateLastTouch(ctx context.Context, workspaceID, id string, touch attribution.Touch, at time.Time) error
	UpdateStage(ctx context.Context, workspaceID, id string, stage Stage, at time.Time) error
	RecordPurchase(ctx context.Context, workspaceID, id string, amount float64, at time.Time) error
}

// StageHistoryRepository defines the operations for the lead stage history.
type StageHistoryRepository interface {
	// CloseOpen stamps exitedAt/duration on the lead's open row, if any.
	CloseOpen(ctx context.Context, workspaceID, leadID string, at time.Time) error
	Append(ctx context.Context, transition *StageTransition) error
	FindByLead(ctx context.Context, workspaceID, leadID string) ([]*StageTransition, error)
}

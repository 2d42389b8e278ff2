// Package content defines the marketing objects that tracking data is attributed to:
// workspaces, landing pages and campaigns.
package content

import "time"

// Workspace is the tenant partition.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NotifyEmail string    `json:"notifyEmail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LandingPage is a published page carrying the beacon. Its workspace assignment
// never changes after creation.
type LandingPage struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	ViewsCount  int64     `json:"viewsCount"`
	LeadsCount  int64     `json:"leadsCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Campaign is a marketing campaign that redirects and captures are attributed to.
type Campaign struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Source      string    `json:"source,omitempty"`
	Medium      string    `json:"medium,omitempty"`
	ClicksCount int64     `json:"clicksCount"`
	LeadsCount  int64     `json:"leadsCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Package messaging defines interfaces for real-time communication.
package messaging

import "github.com/mikahq/mika-go/internal/domain/analytics"

// Publisher fans committed events out to live subscribers. Publish never
// blocks the caller.
type Publisher interface {
	Publish(event *analytics.Event)
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(*analytics.Event) {}

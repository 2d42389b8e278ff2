// Package attribution holds the first-touch / last-touch rules of the pipeline.
//
// First touch is sticky: it is recorded once, at the earliest point of contact, and
// copied downstream by value. Last touch is volatile and always reflects the most
// recent session, redirect or capture that carried marketing context.
package attribution

import (
	"sort"
	"strings"
	"time"
)

// Touch is a marketing context snapshot (UTM parameters plus referrer).
type Touch struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Content  string `json:"content,omitempty"`
	Term     string `json:"term,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// Normalize trims whitespace from every field.
func (t Touch) Normalize() Touch {
	return Touch{
		Source:   strings.TrimSpace(t.Source),
		Medium:   strings.TrimSpace(t.Medium),
		Campaign: strings.TrimSpace(t.Campaign),
		Content:  strings.TrimSpace(t.Content),
		Term:     strings.TrimSpace(t.Term),
		Referrer: strings.TrimSpace(t.Referrer),
	}
}

// HasCampaignData reports whether the touch carries any UTM value.
// A bare referrer is not enough to count as attribution.
func (t Touch) HasCampaignData() bool {
	return t.Source != "" || t.Medium != "" || t.Campaign != "" || t.Content != "" || t.Term != ""
}

// IsZero reports whether every field is empty.
func (t Touch) IsZero() bool {
	return !t.HasCampaignData() && t.Referrer == ""
}

// FirstTouchForLead picks the first touch recorded on a new lead. The visitor's
// stored first touch is the earliest point of contact and wins when it carries
// UTM data; the capture payload is used when the visitor has none or there is
// no visitor.
func FirstTouchForLead(payload Touch, visitorFirst *Touch) Touch {
	payload = payload.Normalize()
	if visitorFirst != nil && visitorFirst.HasCampaignData() {
		return *visitorFirst
	}
	if payload.HasCampaignData() {
		return payload
	}
	if visitorFirst != nil && !visitorFirst.IsZero() {
		return *visitorFirst
	}
	return payload
}

// NextLastTouch returns the last touch after an interaction carrying incoming.
// Interactions without UTM data leave the current last touch in place.
func NextLastTouch(current, incoming Touch) Touch {
	incoming = incoming.Normalize()
	if !incoming.HasCampaignData() {
		return current
	}
	return incoming
}

// Observation is a timestamped touch found in the event or session stream.
type Observation struct {
	Touch Touch
	At    time.Time
	Seq   int64
}

// Rebuild derives first and last touch from observations alone, ignoring any
// denormalized values. Observations without UTM data are skipped; ties on time
// are broken by insertion sequence.
func Rebuild(observations []Observation) (first, last Touch, ok bool) {
	filtered := make([]Observation, 0, len(observations))
	for _, o := range observations {
		o.Touch = o.Touch.Normalize()
		if o.Touch.HasCampaignData() {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return Touch{}, Touch{}, false
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].At.Equal(filtered[j].At) {
			return filtered[i].At.Before(filtered[j].At)
		}
		return filtered[i].Seq < filtered[j].Seq
	})

	return filtered[0].Touch, filtered[len(filtered)-1].Touch, true
}

// SameChannel compares the source/medium/campaign triple denormalized onto leads.
func SameChannel(a, b Touch) bool {
	return a.Source == b.Source && a.Medium == b.Medium && a.Campaign == b.Campaign
}

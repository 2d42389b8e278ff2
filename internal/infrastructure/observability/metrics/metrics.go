// Package metrics exposes the Prometheus collectors for the tracking pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAppended counts events written to the stream.
	// Labels:
	//   - type: event type, e.g. "page_view", "lead_captured"
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_events_appended_total",
			Help: "Total number of events appended to the event stream",
		},
		[]string{"type"},
	)

	// VisitorsResolved counts identity resolutions.
	// Labels:
	//   - outcome: "existing", "created", "race"
	VisitorsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_visitors_resolved_total",
			Help: "Total number of visitor identity resolutions",
		},
		[]string{"outcome"},
	)

	// SessionsStarted counts new sessions.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mika_sessions_started_total",
			Help: "Total number of sessions started",
		},
	)

	// LeadsCaptured counts lead captures.
	// Labels:
	//   - outcome: "created", "merged"
	LeadsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_leads_captured_total",
			Help: "Total number of lead capture requests",
		},
		[]string{"outcome"},
	)

	// StageTransitions counts lead stage changes.
	// Labels:
	//   - direction: "forward", "backward", "churn", "revive"
	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_stage_transitions_total",
			Help: "Total number of lead stage transitions",
		},
		[]string{"direction"},
	)

	// Redirects counts tracked redirects.
	// Labels:
	//   - kind: "click", "affiliate_redirect"
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_redirects_total",
			Help: "Total number of tracked redirects issued",
		},
		[]string{"kind"},
	)

	// BestEffortFailures counts side effects that failed without failing the request.
	// Labels:
	//   - operation: e.g. "redirect_event", "campaign_clicks", "notify_new_lead"
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_best_effort_failures_total",
			Help: "Total number of best-effort side effects that failed",
		},
		[]string{"operation"},
	)

	// Notifications counts new-lead emails.
	// Labels:
	//   - outcome: "sent", "failed", "skipped", "breaker_open"
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mika_notifications_total",
			Help: "Total number of new-lead notification attempts",
		},
		[]string{"outcome"},
	)

	// RateLimited counts rejected beacon requests.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mika_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// LiveSubscribers tracks open live-feed websocket connections.
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mika_live_subscribers",
			Help: "Number of connected live feed subscribers",
		},
	)

	// OperationDuration measures request-level operations.
	// Labels:
	//   - operation: e.g. "track", "capture_lead", "redirect"
	//   - outcome: "success", "failure"
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mika_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "outcome"},
	)
)

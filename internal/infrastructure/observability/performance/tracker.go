package performance

import (
	"sync"
	"time"

	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
)

// Tracker hands out markers and keeps a bounded window of recently completed
// ones for the health endpoint.
type Tracker struct {
	recent    []Marker
	next      int
	full      bool
	active    int
	completed int64
	failed    int64
	mu        sync.Mutex
}

// NewTracker creates a tracker retaining up to window completed markers.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = 256
	}
	return &Tracker{recent: make([]Marker, window)}
}

// StartOperation begins timing an operation.
func (t *Tracker) StartOperation(operation, workspaceID string) *Marker {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()

	return &Marker{
		Operation:   operation,
		WorkspaceID: workspaceID,
		StartTime:   time.Now(),
		onComplete:  t.record,
	}
}

func (t *Tracker) record(m *Marker) {
	outcome := "success"
	if !m.Success {
		outcome = "failure"
	}
	metrics.OperationDuration.WithLabelValues(m.Operation, outcome).Observe(m.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.active--
	t.completed++
	if !m.Success {
		t.failed++
	}
	snapshot := *m
	snapshot.onComplete = nil
	t.recent[t.next] = snapshot
	t.next = (t.next + 1) % len(t.recent)
	if t.next == 0 {
		t.full = true
	}
}

// Stats summarizes the tracker for the health endpoint.
type Stats struct {
	Active        int           `json:"active"`
	Completed     int64         `json:"completed"`
	Failed        int64         `json:"failed"`
	RecentAverage time.Duration `json:"recentAverageNs"`
}

// GetOverallStats returns counts and the average duration of the recent window.
func (t *Tracker) GetOverallStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.recent)
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += t.recent[i].Duration
	}
	stats := Stats{Active: t.active, Completed: t.completed, Failed: t.failed}
	if n > 0 {
		stats.RecentAverage = total / time.Duration(n)
	}
	return stats
}

package performance

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	tracker := NewTracker(4)
	before := testutil.CollectAndCount(metrics.OperationDuration)

	ok := tracker.StartOperation("tracker_test_ok", "ws1")
	assert.Equal(t, 1, tracker.GetOverallStats().Active)
	ok.SetSuccess(true)
	ok.Complete()
	ok.Complete()

	failed := tracker.StartOperation("tracker_test_failed", "ws1")
	failed.SetSuccess(true)
	failed.SetError(errors.New("boom"))
	failed.Complete()

	stats := tracker.GetOverallStats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.Error)
	assert.True(t, failed.Completed)
	assert.Equal(t, before+2, testutil.CollectAndCount(metrics.OperationDuration))
}

func TestTrackerWindowWraps(t *testing.T) {
	tracker := NewTracker(2)
	for i := 0; i < 5; i++ {
		m := tracker.StartOperation("tracker_test_window", "")
		m.SetSuccess(true)
		m.Complete()
	}

	stats := tracker.GetOverallStats()
	assert.Equal(t, int64(5), stats.Completed)
	require.True(t, tracker.full)
	assert.Len(t, tracker.recent, 2)
	assert.Nil(t, tracker.recent[0].onComplete, "snapshots drop the completion hook")
}

package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

type countingSweeper struct {
	removed int
	calls   atomic.Int32
}

func (s *countingSweeper) Sweep() int { s.calls.Add(1); return s.removed }
func (s *countingSweeper) Len() int   { return 0 }

func TestPerformCleanupSumsEveryCache(t *testing.T) {
	a := &countingSweeper{removed: 2}
	b := &countingSweeper{removed: 3}
	w := NewWorker(map[string]Sweeper{"a": a, "b": b}, &Config{CleanupInterval: time.Hour, VerboseReporting: true}, logging.NewDiscardLogger())

	assert.Equal(t, 5, w.performCleanup())
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestStartStopsOnCancel(t *testing.T) {
	s := &countingSweeper{}
	w := NewWorker(map[string]Sweeper{"s": s}, &Config{CleanupInterval: 5 * time.Millisecond}, logging.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

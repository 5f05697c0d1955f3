package socketio

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

const testWindow = 20 * time.Millisecond

// flushLog records which broadcasts a debouncer fired, in order.
type flushLog struct {
	mu      sync.Mutex
	flushes []string
}

func (l *flushLog) record(kind string) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.flushes = append(l.flushes, kind)
	}
}

func (l *flushLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.flushes)
}

func (l *flushLog) count(kind string) int {
	n := 0
	for _, k := range l.get() {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestDebouncer(t *testing.T) (*BroadcastDebouncer, *flushLog) {
	t.Helper()
	l := &flushLog{}
	d := NewBroadcastDebouncer(testWindow, l.record("state"), l.record("queue"))
	t.Cleanup(d.Stop)
	return d, l
}

// settle waits long enough for any armed flush to have fired.
func settle() { time.Sleep(4 * testWindow) }

func TestDebouncer_BurstCollapses(t *testing.T) {
	tests := []struct {
		name    string
		changes []view.Change
		want    []string
	}{
		{"progress ticks", slices.Repeat([]view.Change{view.ChangeState}, 10), []string{"state"}},
		{"queue reorder", []view.Change{view.ChangeQueue, view.ChangeQueue}, []string{"queue"}},
		{"poll touching both", []view.Change{view.ChangeState, view.ChangeQueue, view.ChangeState}, []string{"state", "queue"}},
		{"queue first still flushes state first", []view.Change{view.ChangeQueue, view.ChangeState}, []string{"state", "queue"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, l := newTestDebouncer(t)
			for _, c := range tt.changes {
				d.Trigger(c)
			}
			settle()
			assert.Equal(t, tt.want, l.get())
		})
	}
}

func TestDebouncer_WindowSlides(t *testing.T) {
	d, l := newTestDebouncer(t)

	// A volume drag arrives faster than the window but ends before maxWait.
	for range 8 {
		d.Trigger(view.ChangeState)
		time.Sleep(testWindow / 4)
	}
	assert.Zero(t, l.count("state"), "flushed while the burst was still going")

	settle()
	assert.Equal(t, 1, l.count("state"))
}

func TestDebouncer_QuietGapStartsNewBurst(t *testing.T) {
	d, l := newTestDebouncer(t)

	d.Trigger(view.ChangeState)
	settle()
	d.Trigger(view.ChangeState)
	settle()

	assert.Equal(t, []string{"state", "state"}, l.get())
}

func TestDebouncer_MaxWaitBoundsLatency(t *testing.T) {
	d, l := newTestDebouncer(t)

	// Never quiet for a full window; the first flush must still land within
	// five windows of the burst start.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for end := time.Now().Add(20 * testWindow); time.Now().Before(end); {
			d.Trigger(view.ChangeState)
			time.Sleep(testWindow / 2)
		}
	}()

	assert.Eventually(t, func() bool { return l.count("state") > 0 }, 10*testWindow, testWindow/4)
	<-done
}

func TestDebouncer_Stop(t *testing.T) {
	t.Run("drops pending", func(t *testing.T) {
		d, l := newTestDebouncer(t)
		d.Trigger(view.ChangeState)
		d.Trigger(view.ChangeQueue)
		d.Stop()

		assert.Never(t, func() bool { return len(l.get()) > 0 }, 4*testWindow, testWindow/4)
	})

	t.Run("ignores later triggers", func(t *testing.T) {
		d, l := newTestDebouncer(t)
		d.Stop()
		d.Trigger(view.ChangeState)

		assert.Never(t, func() bool { return len(l.get()) > 0 }, 4*testWindow, testWindow/4)
	})

	t.Run("twice", func(t *testing.T) {
		d, _ := newTestDebouncer(t)
		d.Stop()
		assert.NotPanics(t, d.Stop)
	})
}

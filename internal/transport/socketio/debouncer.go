package socketio

import (
	"sync"
	"time"

	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

// DefaultDebounceWindow batches the progress tick with the poll that usually
// lands next to it.
const DefaultDebounceWindow = 50 * time.Millisecond

// flushOrder sends state before queue so clients see the new now-playing
// entry before the list it left.
var flushOrder = []view.Change{view.ChangeState, view.ChangeQueue}

// BroadcastDebouncer collapses bursts of view changes into one broadcast per
// change kind. A burst flushes once the window passes quietly, or after
// maxWait at the latest so a long volume drag still reaches clients.
type BroadcastDebouncer struct {
	window   time.Duration
	maxWait  time.Duration
	flushers map[view.Change]func()

	mu         sync.Mutex
	pending    map[view.Change]bool
	burstStart time.Time
	timer      *time.Timer
	stopped    bool
}

// NewBroadcastDebouncer creates a debouncer. onState runs for
// view.ChangeState, onQueue for view.ChangeQueue.
func NewBroadcastDebouncer(window time.Duration, onState, onQueue func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:  window,
		maxWait: 5 * window,
		flushers: map[view.Change]func(){
			view.ChangeState: onState,
			view.ChangeQueue: onQueue,
		},
		pending: make(map[view.Change]bool),
	}
}

// Trigger records a change and (re)arms the flush timer.
func (d *BroadcastDebouncer) Trigger(change view.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if len(d.pending) == 0 {
		d.burstStart = now
	}
	d.pending[change] = true

	delay := min(d.window, max(d.maxWait-now.Sub(d.burstStart), 0))
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, d.flush)
}

func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	pending := d.pending
	d.pending = make(map[view.Change]bool)
	d.mu.Unlock()

	for _, change := range flushOrder {
		if fn := d.flushers[change]; pending[change] && fn != nil {
			fn()
		}
	}
}

// Stop drops pending changes and prevents further callbacks.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	clear(d.pending)
}

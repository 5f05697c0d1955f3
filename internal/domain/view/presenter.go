package view

import (
	"slices"
	"sync"

	"github.com/edumarques81/stellar-jukebox/internal/domain/playback"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

// Change says which part of the view moved.
type Change int

const (
	// ChangeState covers the now-playing panel, progress and controls.
	ChangeState Change = iota
	// ChangeQueue means the queue list differs from the last render.
	ChangeQueue
)

func (c Change) String() string {
	if c == ChangeQueue {
		return "queue"
	}
	return "state"
}

// Subscriber is notified after a change. It must not block.
type Subscriber func(Change, View)

// Presenter keeps the latest inputs and pushes renders to subscribers.
// Renders reach subscribers in the order the inputs were applied.
type Presenter struct {
	// pub serializes update+publish; mu guards the fields so subscribers
	// may still call View.
	pub sync.Mutex

	mu     sync.RWMutex
	state  queue.PlaybackState
	status playback.Status
	subs   []Subscriber
}

// NewPresenter creates an empty presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Subscribe registers fn for future changes.
func (p *Presenter) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// SetState records a polled state.
func (p *Presenter) SetState(state queue.PlaybackState) {
	p.pub.Lock()
	defer p.pub.Unlock()

	p.mu.Lock()
	queueChanged := !slices.Equal(p.state.Queue, state.Queue)
	p.state = state
	v := Render(p.state, p.status)
	subs := slices.Clone(p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ChangeState, v)
		if queueChanged {
			fn(ChangeQueue, v)
		}
	}
}

// SetStatus records a playback status.
func (p *Presenter) SetStatus(status playback.Status) {
	p.pub.Lock()
	defer p.pub.Unlock()

	p.mu.Lock()
	p.status = status
	v := Render(p.state, p.status)
	subs := slices.Clone(p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ChangeState, v)
	}
}

// State returns the last recorded queue state.
func (p *Presenter) State() queue.PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// View renders the current inputs.
func (p *Presenter) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Render(p.state, p.status)
}

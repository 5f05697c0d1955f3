// Package player provides the player adapter abstraction and the local
// control state shown next to it.
package player

import "sync"

// State is the lifecycle state reported by the player widget.
type State int

const (
	StateUnstarted State = iota
	StatePlaying
	StatePaused
	StateBuffering
	StateEnded
)

// String returns the lowercase name used in pushed view state.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	default:
		return "unstarted"
	}
}

// MaxVolume is the volume forced by autoplay attempts.
const MaxVolume = 100

// Controls holds the local-only UI toggles plus the volume the user last
// selected. It is safe for concurrent access.
type Controls struct {
	mu sync.RWMutex

	Shuffle bool
	Repeat  bool
	Volume  int
	Mute    bool
}

// NewControls creates control state with default values.
func NewControls() *Controls {
	return &Controls{
		Volume: MaxVolume,
	}
}

// SetVolume sets the volume level (0-100). Moving the slider clears mute.
func (c *Controls) SetVolume(volume int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if volume < 0 {
		volume = 0
	} else if volume > MaxVolume {
		volume = MaxVolume
	}
	c.Volume = volume
	c.Mute = false
	return volume
}

// SetMute sets the mute flag.
func (c *Controls) SetMute(mute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Mute = mute
}

// SetShuffle sets the shuffle flag.
func (c *Controls) SetShuffle(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Shuffle = on
}

// SetRepeat sets the repeat flag.
func (c *Controls) SetRepeat(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Repeat = on
}

// ToggleMute toggles the mute state and returns the new value.
func (c *Controls) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Mute = !c.Mute
	return c.Mute
}

// ToggleShuffle toggles the shuffle state and returns the new value.
func (c *Controls) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Shuffle = !c.Shuffle
	return c.Shuffle
}

// ToggleRepeat toggles the repeat state and returns the new value.
func (c *Controls) ToggleRepeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Repeat = !c.Repeat
	return c.Repeat
}

// Snapshot is a copy of Controls without the lock.
type Snapshot struct {
	Shuffle bool `json:"shuffle"`
	Repeat  bool `json:"repeat"`
	Volume  int  `json:"volume"`
	Mute    bool `json:"mute"`
}

// Snapshot returns a copy of the current control state.
func (c *Controls) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Shuffle: c.Shuffle,
		Repeat:  c.Repeat,
		Volume:  c.Volume,
		Mute:    c.Mute,
	}
}

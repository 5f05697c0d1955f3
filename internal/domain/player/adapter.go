package player

import (
	"errors"
	"time"
)

// ErrNotReady is returned by adapters whose widget has not been initialized.
var ErrNotReady = errors.New("player not ready")

// Adapter is the capability set the jukebox needs from an embeddable media
// widget. Implementations return ErrNotReady until the widget is usable.
type Adapter interface {
	// Ready reports whether the widget accepts commands.
	Ready() bool

	// Load replaces the current item with the given video id and starts it.
	Load(id string) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error

	Mute() error
	Unmute() error
	SetVolume(vol int) error
	Volume() (int, error)

	// SetLoop makes the widget restart the current item when it ends.
	SetLoop(on bool) error

	State() (State, error)
	CurrentTime() (time.Duration, error)
	Duration() (time.Duration, error)
}

// StateListener receives widget lifecycle events.
type StateListener interface {
	OnPlayerReady()
	OnPlayerStateChanged(State)
}

package playback

import (
	"time"

	"github.com/edumarques81/stellar-jukebox/internal/domain/player"
)

// Phase is the position of the forced-play sequence for the loaded track.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAttempting
	PhaseSucceeded
	PhaseGaveUp
)

func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseGaveUp:
		return "gave_up"
	default:
		return "idle"
	}
}

// Status is a point-in-time copy of the controller state.
type Status struct {
	Ready            bool
	CurrentPlayingID string
	AudioEnabled     bool
	RetryCount       int
	Phase            Phase
	PlayerState      player.State
	Position         time.Duration
	Duration         time.Duration
	Controls         player.Snapshot
}

// Playing reports whether the widget is currently playing.
func (s Status) Playing() bool {
	return s.PlayerState == player.StatePlaying
}

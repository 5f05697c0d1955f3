// Package command turns user gestures into queue API calls and local player
// commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

var (
	// ErrSuggestionFailed is returned when the backend could not find or
	// queue a suggested song. UIs show it as an alert.
	ErrSuggestionFailed = errors.New("failed to find song")

	// ErrEmptyQuery is returned for blank suggestions.
	ErrEmptyQuery = errors.New("empty query")
)

// SuggestionFailedMessage is the alert text for ErrSuggestionFailed.
const SuggestionFailedMessage = "Failed to find song."

// Backend is the queue API.
type Backend interface {
	Suggest(ctx context.Context, query, requestedBy string) (queue.Track, error)
	Vote(ctx context.Context, songID int64, vote queue.VoteType) error
	Next(ctx context.Context) (*queue.Track, error)
	Favorite(ctx context.Context, songID int64) error
	Playlists(ctx context.Context) ([]queue.Playlist, error)
	CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error)
	Recommendations(ctx context.Context) ([]queue.Track, error)
}

// Player is the local playback controller.
type Player interface {
	OnUserGesture()
	Load(track queue.Track)
	TogglePlay() error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	SetVolume(vol int) (int, error)
	SetMute(mute bool) error
	ToggleMute() (bool, error)
	SetShuffle(on bool)
	ToggleShuffle() bool
	SetRepeat(on bool) error
	ToggleRepeat() (bool, error)
}

// Refresher triggers an immediate state poll.
type Refresher interface {
	Refresh()
}

// Dispatcher routes gestures. Every gesture first unlocks audio; backend
// actions trigger a refresh once they succeed.
type Dispatcher struct {
	backend     Backend
	player      Player
	refresher   Refresher
	requestedBy string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRequester sets the name sent as requested_by on suggestions.
func WithRequester(name string) Option {
	return func(d *Dispatcher) {
		d.requestedBy = name
	}
}

// New creates a dispatcher.
func New(backend Backend, player Player, refresher Refresher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:     backend,
		player:      player,
		refresher:   refresher,
		requestedBy: "User",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnableAudio is the explicit "tap to enable audio" gesture.
func (d *Dispatcher) EnableAudio() {
	d.player.OnUserGesture()
}

// Suggest asks the backend to queue a song matching query.
func (d *Dispatcher) Suggest(ctx context.Context, query string) (queue.Track, error) {
	d.player.OnUserGesture()

	query = strings.TrimSpace(query)
	if query == "" {
		return queue.Track{}, ErrEmptyQuery
	}

	track, err := d.backend.Suggest(ctx, query, d.requestedBy)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Suggestion failed")
		return queue.Track{}, fmt.Errorf("%w: %w", ErrSuggestionFailed, err)
	}

	log.Info().Str("query", query).Str("title", track.Title).Msg("Song suggested")
	d.refresher.Refresh()
	return track, nil
}

// Vote votes a queued song up or down.
func (d *Dispatcher) Vote(ctx context.Context, songID int64, vote queue.VoteType) error {
	d.player.OnUserGesture()

	if err := d.backend.Vote(ctx, songID, vote); err != nil {
		return fmt.Errorf("vote %d %s: %w", songID, vote, err)
	}
	d.refresher.Refresh()
	return nil
}

// Favorite toggles a song's favorite flag.
func (d *Dispatcher) Favorite(ctx context.Context, songID int64) error {
	d.player.OnUserGesture()

	if err := d.backend.Favorite(ctx, songID); err != nil {
		return fmt.Errorf("favorite %d: %w", songID, err)
	}
	d.refresher.Refresh()
	return nil
}

// Skip is the user's "next" button.
func (d *Dispatcher) Skip(ctx context.Context) error {
	d.player.OnUserGesture()
	return d.Next(ctx)
}

// Next pops the next track, loads it and refreshes. It also runs when a
// track ends, so it does not count as a gesture.
func (d *Dispatcher) Next(ctx context.Context) error {
	track, err := d.backend.Next(ctx)
	if err != nil {
		return fmt.Errorf("next: %w", err)
	}

	if track != nil && track.YouTubeID != "" {
		d.player.Load(*track)
	}
	d.refresher.Refresh()
	return nil
}

// Playlists lists saved playlists.
func (d *Dispatcher) Playlists(ctx context.Context) ([]queue.Playlist, error) {
	d.player.OnUserGesture()

	playlists, err := d.backend.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	d.refresher.Refresh()
	return playlists, nil
}

// CreatePlaylist creates a named playlist.
func (d *Dispatcher) CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error) {
	d.player.OnUserGesture()

	name = strings.TrimSpace(name)
	if name == "" {
		return queue.Playlist{}, errors.New("playlist name is required")
	}

	playlist, err := d.backend.CreatePlaylist(ctx, name)
	if err != nil {
		return queue.Playlist{}, fmt.Errorf("create playlist %q: %w", name, err)
	}
	d.refresher.Refresh()
	return playlist, nil
}

// Recommendations fetches suggested tracks.
func (d *Dispatcher) Recommendations(ctx context.Context) ([]queue.Track, error) {
	d.player.OnUserGesture()

	tracks, err := d.backend.Recommendations(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	d.refresher.Refresh()
	return tracks, nil
}

// TogglePlay plays or pauses.
func (d *Dispatcher) TogglePlay() error {
	d.player.OnUserGesture()
	return d.player.TogglePlay()
}

// Play resumes playback.
func (d *Dispatcher) Play() error {
	d.player.OnUserGesture()
	return d.player.Play()
}

// Pause pauses playback.
func (d *Dispatcher) Pause() error {
	d.player.OnUserGesture()
	return d.player.Pause()
}

// Seek jumps to seconds into the current track.
func (d *Dispatcher) Seek(seconds float64) error {
	d.player.OnUserGesture()
	if seconds < 0 {
		seconds = 0
	}
	return d.player.Seek(time.Duration(seconds * float64(time.Second)))
}

// SetVolume applies the volume slider.
func (d *Dispatcher) SetVolume(vol int) (int, error) {
	d.player.OnUserGesture()
	return d.player.SetVolume(vol)
}

// SetMute mutes or unmutes.
func (d *Dispatcher) SetMute(mute bool) error {
	d.player.OnUserGesture()
	return d.player.SetMute(mute)
}

// ToggleMute flips mute.
func (d *Dispatcher) ToggleMute() (bool, error) {
	d.player.OnUserGesture()
	return d.player.ToggleMute()
}

// SetShuffle sets the local shuffle toggle.
func (d *Dispatcher) SetShuffle(on bool) {
	d.player.OnUserGesture()
	d.player.SetShuffle(on)
}

// ToggleShuffle flips the local shuffle toggle.
func (d *Dispatcher) ToggleShuffle() bool {
	d.player.OnUserGesture()
	return d.player.ToggleShuffle()
}

// SetRepeat sets repeat.
func (d *Dispatcher) SetRepeat(on bool) error {
	d.player.OnUserGesture()
	return d.player.SetRepeat(on)
}

// ToggleRepeat flips repeat.
func (d *Dispatcher) ToggleRepeat() (bool, error) {
	d.player.OnUserGesture()
	return d.player.ToggleRepeat()
}

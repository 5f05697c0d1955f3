package player

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/infra/mpd"
)

// reconnectDelay is how long Run waits between connection attempts.
const reconnectDelay = 5 * time.Second

// MPDClient is the subset of the MPD wrapper used by the adapter.
type MPDClient interface {
	Connect() error
	Connected() bool
	Status() (mpd.Status, error)
	Play(pos int) error
	Pause(pause bool) error
	SeekCur(pos time.Duration) error
	SetVolume(vol int) error
	SetRepeat(on bool) error
	SetSingle(on bool) error
	ReplaceAndPlay(uri string) error
	Watch(ctx context.Context, subsystems ...string) (<-chan string, error)
}

// MPDAdapter drives an MPD instance as the jukebox's player widget. Video ids
// are turned into stream URLs with a printf template, e.g.
// "http://localhost:8090/stream/%s".
type MPDAdapter struct {
	client    MPDClient
	streamURL string

	mu          sync.Mutex
	sawPlaying  bool
	muted       bool
	savedVolume int
	lastState   State
}

// NewMPDAdapter creates an adapter over client.
func NewMPDAdapter(client MPDClient, streamURL string) *MPDAdapter {
	return &MPDAdapter{
		client:      client,
		streamURL:   streamURL,
		savedVolume: MaxVolume,
	}
}

// Ready reports whether the MPD connection is established.
func (a *MPDAdapter) Ready() bool {
	return a.client.Connected()
}

// StreamURL returns the URI MPD is asked to play for id.
func (a *MPDAdapter) StreamURL(id string) string {
	return fmt.Sprintf(a.streamURL, url.PathEscape(id))
}

// Load replaces the MPD queue with the stream for id and starts it.
func (a *MPDAdapter) Load(id string) error {
	if !a.Ready() {
		return ErrNotReady
	}

	// Held across the replace so State never sees the old item's stop as
	// the end of the new one.
	a.mu.Lock()
	defer a.mu.Unlock()

	uri := a.StreamURL(id)
	log.Info().Str("youtube_id", id).Str("uri", uri).Msg("Load")
	a.sawPlaying = false
	if err := a.client.ReplaceAndPlay(uri); err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	return nil
}

// Play resumes or starts the current item.
func (a *MPDAdapter) Play() error {
	if !a.Ready() {
		return ErrNotReady
	}
	return a.client.Play(-1)
}

// Pause pauses playback.
func (a *MPDAdapter) Pause() error {
	if !a.Ready() {
		return ErrNotReady
	}
	return a.client.Pause(true)
}

// Seek seeks within the current item.
func (a *MPDAdapter) Seek(pos time.Duration) error {
	if !a.Ready() {
		return ErrNotReady
	}
	if pos < 0 {
		pos = 0
	}
	return a.client.SeekCur(pos)
}

// Mute silences output. MPD has no native mute, so the current volume is
// remembered and restored by Unmute.
func (a *MPDAdapter) Mute() error {
	if !a.Ready() {
		return ErrNotReady
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.muted {
		return nil
	}

	vol, err := a.volume()
	if err != nil {
		return err
	}
	if err := a.client.SetVolume(0); err != nil {
		return err
	}
	a.savedVolume = vol
	a.muted = true
	return nil
}

// Unmute restores the volume saved by Mute.
func (a *MPDAdapter) Unmute() error {
	if !a.Ready() {
		return ErrNotReady
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.muted {
		return nil
	}
	if err := a.client.SetVolume(a.savedVolume); err != nil {
		return err
	}
	a.muted = false
	return nil
}

// SetVolume sets the output volume; an explicit volume also ends mute.
func (a *MPDAdapter) SetVolume(vol int) error {
	if !a.Ready() {
		return ErrNotReady
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.client.SetVolume(vol); err != nil {
		return err
	}
	a.muted = false
	return nil
}

// Volume returns the mixer volume. Outputs without a mixer report MaxVolume.
func (a *MPDAdapter) Volume() (int, error) {
	if !a.Ready() {
		return 0, ErrNotReady
	}
	return a.volume()
}

func (a *MPDAdapter) volume() (int, error) {
	status, err := a.client.Status()
	if err != nil {
		return 0, err
	}
	if status.Volume < 0 {
		return MaxVolume, nil
	}
	return status.Volume, nil
}

// SetLoop maps looping onto MPD repeat+single.
func (a *MPDAdapter) SetLoop(on bool) error {
	if !a.Ready() {
		return ErrNotReady
	}
	if err := a.client.SetRepeat(on); err != nil {
		return err
	}
	return a.client.SetSingle(on)
}

// State returns the widget lifecycle state derived from MPD status.
func (a *MPDAdapter) State() (State, error) {
	if !a.Ready() {
		return StateUnstarted, ErrNotReady
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	status, err := a.client.Status()
	if err != nil {
		return StateUnstarted, err
	}

	st := mapState(status, a.sawPlaying)
	if st == StatePlaying {
		a.sawPlaying = true
	}
	return st, nil
}

// mapState converts MPD status into a lifecycle state. A stopped player that
// already played the loaded item is reported as ended.
func mapState(status mpd.Status, sawPlaying bool) State {
	switch status.State {
	case mpd.StatePlay:
		if !status.AudioOpen {
			return StateBuffering
		}
		return StatePlaying
	case mpd.StatePause:
		return StatePaused
	default:
		if sawPlaying {
			return StateEnded
		}
		return StateUnstarted
	}
}

// CurrentTime returns the elapsed time of the current item.
func (a *MPDAdapter) CurrentTime() (time.Duration, error) {
	status, err := a.status()
	return status.Elapsed, err
}

// Duration returns the length of the current item, 0 for live streams.
func (a *MPDAdapter) Duration() (time.Duration, error) {
	status, err := a.status()
	return status.Duration, err
}

func (a *MPDAdapter) status() (mpd.Status, error) {
	if !a.Ready() {
		return mpd.Status{}, ErrNotReady
	}
	return a.client.Status()
}

// Run connects to MPD, reports readiness and forwards lifecycle changes to
// listener until ctx is cancelled.
func (a *MPDAdapter) Run(ctx context.Context, listener StateListener) {
	for {
		if !a.client.Connected() {
			if err := a.client.Connect(); err != nil {
				log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("MPD not available")
				if !sleep(ctx, reconnectDelay) {
					return
				}
				continue
			}
		}

		log.Info().Msg("Player ready")
		listener.OnPlayerReady()

		events, err := a.client.Watch(ctx, "player")
		if err != nil {
			log.Error().Err(err).Msg("Failed to start MPD watcher")
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		if !a.forward(ctx, events, listener) {
			return
		}
		log.Warn().Msg("MPD watcher channel closed")
	}
}

// forward relays state changes; it returns false once ctx is done.
func (a *MPDAdapter) forward(ctx context.Context, events <-chan string, listener StateListener) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case subsystem, ok := <-events:
			if !ok {
				return true
			}
			log.Debug().Str("subsystem", subsystem).Msg("MPD subsystem changed")

			st, err := a.State()
			if err != nil {
				log.Error().Err(err).Msg("Failed to read player state")
				continue
			}

			a.mu.Lock()
			changed := st != a.lastState
			a.lastState = st
			a.mu.Unlock()

			if changed {
				listener.OnPlayerStateChanged(st)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Package playback keeps the local player in step with the shared queue and
// forces playback to start when the host blocks autoplay.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/player"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

const (
	// LoadDelay lets the widget buffer before the first play attempt.
	LoadDelay = 500 * time.Millisecond
	// CheckDelay is the wait between a play attempt and reading its outcome.
	CheckDelay = time.Second
	// ProgressInterval is the period of position updates while playing.
	ProgressInterval = time.Second
	// MaxRetries is the last attempt index; attempts run 0..MaxRetries.
	MaxRetries = 5

	advanceTimeout = 10 * time.Second
)

// Advancer moves the shared queue to its next track.
type Advancer interface {
	Next(ctx context.Context) error
}

// Listener is called with a fresh Status after every observable change. It
// runs with the controller locked and must not call back into it.
type Listener func(Status)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the runtime timers.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithListener registers the status listener.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithControls shares an existing control state.
func WithControls(controls *player.Controls) Option {
	return func(c *Controller) { c.controls = controls }
}

// WithOnReady registers a hook run after the player reports ready.
func WithOnReady(fn func()) Option {
	return func(c *Controller) { c.onReady = fn }
}

// task is a pending callback of the forced-play sequence tagged with the
// track it was scheduled for.
type task struct {
	trackID string
	timer   Timer
}

type ticker struct {
	timer Timer
}

// Controller owns the sync state: which track is loaded on the player,
// whether audio has been unlocked and the progress of the forced-play
// sequence. All adapter calls happen with mu held.
type Controller struct {
	mu sync.Mutex

	adapter  player.Adapter
	controls *player.Controls
	clock    Clock
	listener Listener
	advancer Advancer
	onReady  func()

	currentPlayingID string
	audioEnabled     bool
	retryCount       int
	phase            Phase
	retry            *task

	playerState player.State
	progress    *ticker
	position    time.Duration
	duration    time.Duration
}

// NewController creates a controller driving adapter.
func NewController(adapter player.Adapter, opts ...Option) *Controller {
	c := &Controller{
		adapter: adapter,
		clock:   RealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.controls == nil {
		c.controls = player.NewControls()
	}
	return c
}

// SetAdvancer sets the component called when a track ends.
func (c *Controller) SetAdvancer(a Advancer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advancer = a
}

// Status returns a snapshot of the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{
		Ready:            c.adapter.Ready(),
		CurrentPlayingID: c.currentPlayingID,
		AudioEnabled:     c.audioEnabled,
		RetryCount:       c.retryCount,
		Phase:            c.phase,
		PlayerState:      c.playerState,
		Position:         c.position,
		Duration:         c.duration,
		Controls:         c.controls.Snapshot(),
	}
}

func (c *Controller) notifyLocked() {
	if c.listener != nil {
		c.listener(c.statusLocked())
	}
}

// OnPollResult reconciles the player with a freshly polled state.
func (c *Controller) OnPollResult(state queue.PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state.NowPlaying == nil {
		if c.currentPlayingID != "" {
			log.Info().Str("youtube_id", c.currentPlayingID).Msg("Queue stopped, clearing current track")
		}
		c.currentPlayingID = ""
		c.phase = PhaseIdle
		c.cancelRetryLocked()
		c.stopProgressLocked()
		c.notifyLocked()
		return
	}

	if c.syncLocked(*state.NowPlaying, false) {
		c.notifyLocked()
	}
}

// Load loads track even when it is the current one, so a queue that moves on
// to the same video plays it again instead of staying ended.
func (c *Controller) Load(track queue.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.syncLocked(track, true) {
		c.notifyLocked()
	}
}

// syncLocked loads track if needed, or always when force is set, and reports
// whether anything changed.
func (c *Controller) syncLocked(track queue.Track, force bool) bool {
	id := track.YouTubeID
	if id == "" || (id == c.currentPlayingID && !force) {
		return false
	}

	if !c.adapter.Ready() {
		log.Debug().Str("youtube_id", id).Msg("Player not ready, deferring load")
		return false
	}

	if err := c.adapter.Load(id); err != nil {
		log.Error().Err(err).Str("youtube_id", id).Msg("Failed to load track")
		return false
	}

	log.Info().
		Int64("song_id", track.ID).
		Str("youtube_id", id).
		Str("title", track.Title).
		Msg("Loaded new track")

	c.currentPlayingID = id
	c.retryCount = 0
	c.phase = PhaseIdle
	c.position = 0
	c.duration = time.Duration(track.Duration) * time.Second
	c.stopProgressLocked()
	c.scheduleLocked(LoadDelay, func() { c.attemptLocked(0) })
	return true
}

// OnUserGesture unlocks audio on the first user interaction by running the
// forced-play sequence immediately. Later calls do nothing.
func (c *Controller) OnUserGesture() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audioEnabled {
		return
	}
	c.audioEnabled = true
	log.Info().Msg("Audio enabled by user gesture")

	if !c.adapter.Ready() {
		c.notifyLocked()
		return
	}

	c.cancelRetryLocked()
	c.attemptLocked(0)
}

// scheduleLocked replaces the pending task with fn after d. fn runs locked
// and only while its task is still current for the same track.
func (c *Controller) scheduleLocked(d time.Duration, fn func()) {
	c.cancelRetryLocked()

	t := &task{trackID: c.currentPlayingID}
	t.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.retry != t || t.trackID != c.currentPlayingID {
			log.Debug().Str("youtube_id", t.trackID).Msg("Dropping stale playback task")
			return
		}
		c.retry = nil
		fn()
	})
	c.retry = t
}

func (c *Controller) cancelRetryLocked() {
	if c.retry != nil {
		c.retry.timer.Stop()
		c.retry = nil
	}
}

// attemptLocked runs attempt n of the forced-play sequence.
func (c *Controller) attemptLocked(n int) {
	c.phase = PhaseAttempting
	c.retryCount = n

	log.Debug().Int("attempt", n).Str("youtube_id", c.currentPlayingID).Msg("Forcing playback")

	if err := c.forcePlayLocked(); err != nil {
		log.Warn().Err(err).Int("attempt", n).Msg("Play attempt failed")
		if n < MaxRetries {
			c.scheduleLocked(CheckDelay, func() { c.attemptLocked(n + 1) })
		} else {
			c.giveUpLocked()
		}
		c.notifyLocked()
		return
	}

	c.scheduleLocked(CheckDelay, func() { c.checkLocked(n) })
	c.notifyLocked()
}

func (c *Controller) forcePlayLocked() error {
	if err := c.adapter.Unmute(); err != nil {
		return err
	}
	c.controls.SetVolume(player.MaxVolume)
	if err := c.adapter.SetVolume(player.MaxVolume); err != nil {
		return err
	}
	return c.adapter.Play()
}

// checkLocked reads the outcome of attempt n.
func (c *Controller) checkLocked(n int) {
	st, err := c.adapter.State()
	if err != nil {
		log.Warn().Err(err).Int("attempt", n).Msg("Failed to read player state")
	}

	if err == nil && st == player.StatePlaying {
		log.Info().Int("attempt", n).Str("youtube_id", c.currentPlayingID).Msg("Playback started")
		c.phase = PhaseSucceeded
		c.audioEnabled = true
		c.playerState = st
		c.startProgressLocked()
		c.notifyLocked()
		return
	}

	if n < MaxRetries {
		c.attemptLocked(n + 1)
		return
	}

	c.giveUpLocked()
	c.notifyLocked()
}

func (c *Controller) giveUpLocked() {
	c.phase = PhaseGaveUp
	log.Warn().
		Str("youtube_id", c.currentPlayingID).
		Int("attempts", MaxRetries+1).
		Msg("Giving up on autoplay")
}

// OnPlayerReady is called once the widget accepts commands.
func (c *Controller) OnPlayerReady() {
	c.mu.Lock()
	if err := c.adapter.SetLoop(c.controls.Snapshot().Repeat); err != nil {
		log.Warn().Err(err).Msg("Failed to apply loop mode")
	}
	c.notifyLocked()
	onReady := c.onReady
	c.mu.Unlock()

	if onReady != nil {
		onReady()
	}
}

// OnPlayerStateChanged tracks the widget lifecycle. An ended track advances
// the shared queue unless repeat is on.
func (c *Controller) OnPlayerStateChanged(st player.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Debug().Str("state", st.String()).Msg("Player state changed")
	c.playerState = st

	switch st {
	case player.StatePlaying:
		c.startProgressLocked()
	case player.StateEnded:
		c.stopProgressLocked()
		if c.controls.Snapshot().Repeat {
			c.replayLocked()
		} else {
			c.advanceLocked()
		}
	default:
		c.stopProgressLocked()
	}

	c.notifyLocked()
}

func (c *Controller) replayLocked() {
	if err := c.adapter.Seek(0); err != nil {
		log.Warn().Err(err).Msg("Failed to rewind for repeat")
		return
	}
	if err := c.adapter.Play(); err != nil {
		log.Warn().Err(err).Msg("Failed to replay track")
	}
}

func (c *Controller) advanceLocked() {
	if c.advancer == nil {
		return
	}
	adv := c.advancer
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), advanceTimeout)
		defer cancel()
		if err := adv.Next(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to advance to next track")
		}
	}()
}

func (c *Controller) startProgressLocked() {
	if c.progress != nil {
		return
	}
	p := &ticker{}
	c.progress = p
	c.armProgressLocked(p)
}

func (c *Controller) armProgressLocked(p *ticker) {
	p.timer = c.clock.AfterFunc(ProgressInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.progress != p {
			return
		}
		c.refreshPositionLocked()
		c.notifyLocked()
		c.armProgressLocked(p)
	})
}

func (c *Controller) stopProgressLocked() {
	if c.progress != nil {
		c.progress.timer.Stop()
		c.progress = nil
	}
}

func (c *Controller) refreshPositionLocked() {
	if pos, err := c.adapter.CurrentTime(); err == nil {
		c.position = pos
	}
	if dur, err := c.adapter.Duration(); err == nil && dur > 0 {
		c.duration = dur
	}
}

// TogglePlay pauses a playing widget and plays otherwise.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adapter.Ready() {
		return nil
	}

	st, err := c.adapter.State()
	if err != nil {
		return err
	}
	if st == player.StatePlaying {
		return c.pauseLocked()
	}
	return c.adapter.Play()
}

// Play resumes playback.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adapter.Ready() {
		return nil
	}
	return c.adapter.Play()
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adapter.Ready() {
		return nil
	}
	return c.pauseLocked()
}

// pauseLocked pauses and ends any forced-play sequence for the current
// track, so a later check does not start it again.
func (c *Controller) pauseLocked() error {
	if c.retry != nil {
		log.Info().Str("youtube_id", c.currentPlayingID).Msg("Pause stops forced playback")
		c.cancelRetryLocked()
		c.phase = PhaseIdle
		defer c.notifyLocked()
	}
	return c.adapter.Pause()
}

// Seek jumps to pos within the current track.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adapter.Ready() {
		return nil
	}
	if err := c.adapter.Seek(pos); err != nil {
		return err
	}
	c.position = pos
	c.notifyLocked()
	return nil
}

// SetVolume applies a volume from the slider and returns the clamped value.
func (c *Controller) SetVolume(vol int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vol = c.controls.SetVolume(vol)
	c.notifyLocked()

	if !c.adapter.Ready() {
		return vol, nil
	}
	return vol, c.adapter.SetVolume(vol)
}

// SetMute mutes or unmutes the widget.
func (c *Controller) SetMute(mute bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setMuteLocked(mute)
}

// ToggleMute flips mute and returns the new value.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mute := c.controls.ToggleMute()
	return mute, c.applyMuteLocked(mute)
}

func (c *Controller) setMuteLocked(mute bool) error {
	c.controls.SetMute(mute)
	return c.applyMuteLocked(mute)
}

func (c *Controller) applyMuteLocked(mute bool) error {
	c.notifyLocked()

	if !c.adapter.Ready() {
		return nil
	}
	if mute {
		return c.adapter.Mute()
	}
	return c.adapter.Unmute()
}

// SetShuffle sets the local shuffle flag.
func (c *Controller) SetShuffle(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.controls.SetShuffle(on)
	c.notifyLocked()
}

// ToggleShuffle flips the local shuffle flag and returns the new value.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	on := c.controls.ToggleShuffle()
	c.notifyLocked()
	return on
}

// SetRepeat sets repeat and mirrors it onto the widget's loop mode.
func (c *Controller) SetRepeat(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.controls.SetRepeat(on)
	return c.applyLoopLocked(on)
}

// ToggleRepeat flips repeat and returns the new value.
func (c *Controller) ToggleRepeat() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	on := c.controls.ToggleRepeat()
	return on, c.applyLoopLocked(on)
}

func (c *Controller) applyLoopLocked(on bool) error {
	c.notifyLocked()

	if !c.adapter.Ready() {
		return nil
	}
	return c.adapter.SetLoop(on)
}

// Close cancels pending timers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRetryLocked()
	c.stopProgressLocked()
}

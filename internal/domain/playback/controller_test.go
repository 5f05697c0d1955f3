package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/stellar-jukebox/internal/domain/playback"
	"github.com/edumarques81/stellar-jukebox/internal/domain/player"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

// manualClock fires callbacks only when advanced. With leaky set, stopped
// timers still fire so stale-callback guards can be observed.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
	leaky  bool
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) playback.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, firing due callbacks in order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.fired || (t.stopped && !c.leaky) || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// fakeAdapter records commands. It starts playing after playAfter Play calls;
// zero means never.
type fakeAdapter struct {
	mu sync.Mutex

	ready     bool
	state     player.State
	playAfter int
	playErr   error
	loadErr   error

	loads   []string
	plays   int
	pauses  int
	unmutes int
	mutes   int
	volumes []int
	seeks   []time.Duration
	loops   []bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{ready: true}
}

func (a *fakeAdapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *fakeAdapter) Load(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return a.loadErr
	}
	a.loads = append(a.loads, id)
	a.state = player.StateUnstarted
	return nil
}

func (a *fakeAdapter) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays++
	if a.playErr != nil {
		return a.playErr
	}
	if a.playAfter > 0 && a.plays >= a.playAfter {
		a.state = player.StatePlaying
	}
	return nil
}

func (a *fakeAdapter) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauses++
	a.state = player.StatePaused
	return nil
}

func (a *fakeAdapter) Seek(pos time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeks = append(a.seeks, pos)
	return nil
}

func (a *fakeAdapter) Mute() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutes++
	return nil
}

func (a *fakeAdapter) Unmute() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unmutes++
	return nil
}

func (a *fakeAdapter) SetVolume(vol int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volumes = append(a.volumes, vol)
	return nil
}

func (a *fakeAdapter) Volume() (int, error) { return 100, nil }

func (a *fakeAdapter) SetLoop(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loops = append(a.loops, on)
	return nil
}

func (a *fakeAdapter) State() (player.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, nil
}

func (a *fakeAdapter) CurrentTime() (time.Duration, error) { return 42 * time.Second, nil }

func (a *fakeAdapter) Duration() (time.Duration, error) { return 3 * time.Minute, nil }

func (a *fakeAdapter) playCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays
}

type fakeAdvancer struct {
	calls chan struct{}
}

func (f *fakeAdvancer) Next(ctx context.Context) error {
	f.calls <- struct{}{}
	return nil
}

func nowPlaying(id int64, youtubeID string) queue.PlaybackState {
	return queue.PlaybackState{
		NowPlaying: &queue.Track{ID: id, YouTubeID: youtubeID, Title: "Song " + youtubeID},
		Queue:      []queue.Track{},
	}
}

func newTestController(a *fakeAdapter, opts ...playback.Option) (*playback.Controller, *manualClock) {
	clock := &manualClock{}
	opts = append([]playback.Option{playback.WithClock(clock)}, opts...)
	return playback.NewController(a, opts...), clock
}

func TestOnPollResultSameIDLoadsOnce(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnPollResult(nowPlaying(1, "abc"))

	assert.Equal(t, []string{"abc"}, a.loads)
	assert.Equal(t, "abc", c.Status().CurrentPlayingID)
}

func TestOnPollResultNewIDLoads(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnPollResult(nowPlaying(2, "def"))

	assert.Equal(t, []string{"abc", "def"}, a.loads)
	st := c.Status()
	assert.Equal(t, "def", st.CurrentPlayingID)
	assert.Equal(t, 0, st.RetryCount)
}

func TestOnPollResultNilClearsCurrent(t *testing.T) {
	a := newFakeAdapter()
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnPollResult(queue.PlaybackState{Queue: []queue.Track{}})

	assert.Empty(t, c.Status().CurrentPlayingID)

	// The pending sequence for "abc" was cancelled.
	clock.Advance(10 * time.Second)
	assert.Zero(t, a.playCount())

	// The same track coming back is loaded again.
	c.OnPollResult(nowPlaying(1, "abc"))
	assert.Equal(t, []string{"abc", "abc"}, a.loads)
}

func TestOnPollResultNotReady(t *testing.T) {
	a := newFakeAdapter()
	a.ready = false
	c, _ := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	assert.Empty(t, a.loads)
	assert.Empty(t, c.Status().CurrentPlayingID)

	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()

	c.OnPollResult(nowPlaying(1, "abc"))
	assert.Equal(t, []string{"abc"}, a.loads)
}

func TestOnPollResultLoadFailureNotRecorded(t *testing.T) {
	a := newFakeAdapter()
	a.loadErr = errors.New("stream unavailable")
	c, _ := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	assert.Empty(t, c.Status().CurrentPlayingID)
}

func TestForcedPlaySucceedsOnFirstCheck(t *testing.T) {
	a := newFakeAdapter()
	a.playAfter = 1
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	assert.Equal(t, playback.PhaseIdle, c.Status().Phase)

	clock.Advance(playback.LoadDelay)
	st := c.Status()
	assert.Equal(t, playback.PhaseAttempting, st.Phase)
	assert.Equal(t, 0, st.RetryCount)
	assert.Equal(t, 1, a.playCount())
	assert.Equal(t, 1, a.unmutes)
	assert.Equal(t, []int{player.MaxVolume}, a.volumes)

	clock.Advance(playback.CheckDelay)
	st = c.Status()
	assert.Equal(t, playback.PhaseSucceeded, st.Phase)
	assert.Equal(t, 0, st.RetryCount)
	assert.True(t, st.AudioEnabled)
	assert.True(t, st.Playing())
	assert.Equal(t, 1, a.playCount())
}

func TestForcedPlayGivesUpAfterSixAttempts(t *testing.T) {
	a := newFakeAdapter()
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	clock.Advance(playback.LoadDelay)
	for i := 0; i < 10; i++ {
		clock.Advance(playback.CheckDelay)
	}

	st := c.Status()
	assert.Equal(t, playback.PhaseGaveUp, st.Phase)
	assert.Equal(t, playback.MaxRetries, st.RetryCount)
	assert.False(t, st.AudioEnabled)
	assert.Equal(t, 6, a.playCount())

	clock.Advance(time.Minute)
	assert.Equal(t, 6, a.playCount())
}

func TestForcedPlaySucceedsOnLaterAttempt(t *testing.T) {
	a := newFakeAdapter()
	a.playAfter = 3
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	clock.Advance(playback.LoadDelay + 3*playback.CheckDelay)

	st := c.Status()
	assert.Equal(t, playback.PhaseSucceeded, st.Phase)
	assert.Equal(t, 2, st.RetryCount)
	assert.Equal(t, 3, a.playCount())
}

func TestForcedPlayErrorsAreRetried(t *testing.T) {
	a := newFakeAdapter()
	a.playErr = errors.New("autoplay blocked")
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	clock.Advance(playback.LoadDelay)
	for i := 0; i < 10; i++ {
		clock.Advance(playback.CheckDelay)
	}

	assert.Equal(t, playback.PhaseGaveUp, c.Status().Phase)
	assert.Equal(t, 6, a.playCount())
}

func TestSupersedingLoadCancelsRetries(t *testing.T) {
	a := newFakeAdapter()
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	clock.Advance(playback.LoadDelay)
	require.Equal(t, 1, a.playCount())

	c.OnPollResult(nowPlaying(2, "def"))
	clock.Advance(playback.LoadDelay / 2)
	assert.Equal(t, 1, a.playCount())

	st := c.Status()
	assert.Equal(t, "def", st.CurrentPlayingID)
	assert.Equal(t, playback.PhaseIdle, st.Phase)

	// The check for "abc" would have been due here; only "def" attempts.
	clock.Advance(playback.CheckDelay)
	assert.Equal(t, 2, a.playCount())
	assert.Equal(t, playback.PhaseAttempting, c.Status().Phase)
}

func TestStaleCallbacksAreNoOps(t *testing.T) {
	a := newFakeAdapter()
	clock := &manualClock{leaky: true}
	c := playback.NewController(a, playback.WithClock(clock))

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnPollResult(nowPlaying(2, "def"))

	// Both load timers are due; only the one for "def" may act.
	clock.Advance(playback.LoadDelay)
	assert.Equal(t, 1, a.playCount())

	// Drive "def" to exhaustion; stray "abc" timers never add attempts.
	for i := 0; i < 10; i++ {
		clock.Advance(playback.CheckDelay)
	}
	assert.Equal(t, 6, a.playCount())
	assert.Equal(t, "def", c.Status().CurrentPlayingID)
}

func TestOnUserGestureFirstCallOnly(t *testing.T) {
	a := newFakeAdapter()
	a.playAfter = 1
	c, clock := newTestController(a)

	c.OnUserGesture()
	assert.Equal(t, 1, a.playCount())
	assert.True(t, c.Status().AudioEnabled)

	c.OnUserGesture()
	assert.Equal(t, 1, a.playCount())

	clock.Advance(playback.CheckDelay)
	assert.Equal(t, playback.PhaseSucceeded, c.Status().Phase)
}

func TestOnUserGestureNotReady(t *testing.T) {
	a := newFakeAdapter()
	a.ready = false
	c, _ := newTestController(a)

	c.OnUserGesture()
	assert.Zero(t, a.playCount())
	assert.True(t, c.Status().AudioEnabled)
}

func TestEndedAdvancesQueue(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)
	adv := &fakeAdvancer{calls: make(chan struct{}, 1)}
	c.SetAdvancer(adv)

	c.OnPlayerStateChanged(player.StateEnded)

	select {
	case <-adv.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("advancer was not called")
	}
	assert.Equal(t, player.StateEnded, c.Status().PlayerState)
}

func TestEndedWithRepeatReplays(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)
	adv := &fakeAdvancer{calls: make(chan struct{}, 1)}
	c.SetAdvancer(adv)

	on, err := c.ToggleRepeat()
	require.NoError(t, err)
	require.True(t, on)
	assert.Equal(t, []bool{true}, a.loops)

	c.OnPlayerStateChanged(player.StateEnded)

	assert.Equal(t, []time.Duration{0}, a.seeks)
	assert.Equal(t, 1, a.playCount())
	select {
	case <-adv.calls:
		t.Fatal("advancer must not be called with repeat on")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProgressUpdatesWhilePlaying(t *testing.T) {
	a := newFakeAdapter()
	var mu sync.Mutex
	var statuses []playback.Status
	c, clock := newTestController(a, playback.WithListener(func(s playback.Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}))

	c.OnPlayerStateChanged(player.StatePlaying)
	clock.Advance(playback.ProgressInterval)

	st := c.Status()
	assert.Equal(t, 42*time.Second, st.Position)
	assert.Equal(t, 3*time.Minute, st.Duration)

	c.OnPlayerStateChanged(player.StatePaused)
	mu.Lock()
	n := len(statuses)
	mu.Unlock()

	clock.Advance(5 * playback.ProgressInterval)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, statuses, n, "no ticks after pause")
}

func TestTogglePlay(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	require.NoError(t, c.TogglePlay())
	assert.Equal(t, 1, a.playCount())

	a.mu.Lock()
	a.state = player.StatePlaying
	a.mu.Unlock()

	require.NoError(t, c.TogglePlay())
	assert.Equal(t, 1, a.pauses)
}

func TestLoadReplaysSameVideo(t *testing.T) {
	a := newFakeAdapter()
	a.playAfter = 1
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	clock.Advance(playback.LoadDelay + playback.CheckDelay)
	c.OnPlayerStateChanged(player.StateEnded)

	// The queue moved on to a re-queued copy of the same video.
	c.Load(queue.Track{ID: 2, YouTubeID: "abc"})
	assert.Equal(t, []string{"abc", "abc"}, a.loads)

	// The poll that follows reports the same id and does not reload.
	c.OnPollResult(nowPlaying(2, "abc"))
	assert.Equal(t, []string{"abc", "abc"}, a.loads)

	clock.Advance(playback.LoadDelay + playback.CheckDelay)
	assert.Equal(t, 2, a.playCount())
	assert.Equal(t, playback.PhaseSucceeded, c.Status().Phase)
}

func TestPauseStopsForcedPlay(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *playback.Controller, clock *manualClock)
		plays int
	}{
		{
			name: "first gesture is pause",
			setup: func(c *playback.Controller, clock *manualClock) {
				c.OnPollResult(nowPlaying(1, "abc"))
				c.OnUserGesture()
			},
			plays: 1,
		},
		{
			name: "pause before the first attempt",
			setup: func(c *playback.Controller, clock *manualClock) {
				c.OnPollResult(nowPlaying(1, "abc"))
				clock.Advance(playback.LoadDelay / 2)
			},
			plays: 0,
		},
		{
			name: "pause between attempts",
			setup: func(c *playback.Controller, clock *manualClock) {
				c.OnPollResult(nowPlaying(1, "abc"))
				clock.Advance(playback.LoadDelay + playback.CheckDelay)
			},
			plays: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFakeAdapter()
			a.playAfter = 10
			c, clock := newTestController(a)

			tt.setup(c, clock)
			require.NoError(t, c.Pause())
			clock.Advance(10 * time.Second)

			assert.Equal(t, tt.plays, a.playCount())
			assert.Equal(t, 1, a.pauses)
			st, _ := a.State()
			assert.Equal(t, player.StatePaused, st)
			assert.Equal(t, playback.PhaseIdle, c.Status().Phase)
		})
	}
}

func TestTogglePlayPauseStopsForcedPlay(t *testing.T) {
	a := newFakeAdapter()
	a.playAfter = 1
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnUserGesture()
	require.NoError(t, c.TogglePlay())
	clock.Advance(10 * time.Second)

	assert.Equal(t, 1, a.playCount())
	assert.Equal(t, 1, a.pauses)
	assert.Equal(t, playback.PhaseIdle, c.Status().Phase)
}

func TestQueueStoppedStopsProgress(t *testing.T) {
	a := newFakeAdapter()
	c, clock := newTestController(a)

	c.OnPollResult(nowPlaying(1, "abc"))
	c.OnPlayerStateChanged(player.StatePlaying)
	c.OnPollResult(queue.PlaybackState{Queue: []queue.Track{}})

	clock.Advance(5 * playback.ProgressInterval)
	assert.Zero(t, c.Status().Position)
}

func TestSetVolumeAndMute(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	vol, err := c.SetVolume(150)
	require.NoError(t, err)
	assert.Equal(t, 100, vol)

	vol, err = c.SetVolume(75)
	require.NoError(t, err)
	assert.Equal(t, 75, vol)
	assert.Equal(t, []int{100, 75}, a.volumes)

	muted, err := c.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)
	assert.Equal(t, 1, a.mutes)
	assert.True(t, c.Status().Controls.Mute)

	muted, err = c.ToggleMute()
	require.NoError(t, err)
	assert.False(t, muted)
	assert.Equal(t, 1, a.unmutes)
}

func TestToggleShuffleIsLocal(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	assert.True(t, c.ToggleShuffle())
	assert.True(t, c.Status().Controls.Shuffle)
	assert.Empty(t, a.loops)
}

func TestOnPlayerReadyAppliesLoopAndRunsHook(t *testing.T) {
	a := newFakeAdapter()
	called := false
	c, _ := newTestController(a, playback.WithOnReady(func() { called = true }))

	c.OnPlayerReady()

	assert.True(t, called)
	assert.Equal(t, []bool{false}, a.loops)
}

func TestSeek(t *testing.T) {
	a := newFakeAdapter()
	c, _ := newTestController(a)

	require.NoError(t, c.Seek(90*time.Second))
	assert.Equal(t, []time.Duration{90 * time.Second}, a.seeks)
	assert.Equal(t, 90*time.Second, c.Status().Position)
}

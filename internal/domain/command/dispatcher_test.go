package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Suggest(ctx context.Context, query, requestedBy string) (queue.Track, error) {
	args := m.Called(ctx, query, requestedBy)
	return args.Get(0).(queue.Track), args.Error(1)
}

func (m *MockBackend) Vote(ctx context.Context, songID int64, vote queue.VoteType) error {
	return m.Called(ctx, songID, vote).Error(0)
}

func (m *MockBackend) Next(ctx context.Context) (*queue.Track, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Track), args.Error(1)
}

func (m *MockBackend) Favorite(ctx context.Context, songID int64) error {
	return m.Called(ctx, songID).Error(0)
}

func (m *MockBackend) Playlists(ctx context.Context) ([]queue.Playlist, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Playlist), args.Error(1)
}

func (m *MockBackend) CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(queue.Playlist), args.Error(1)
}

func (m *MockBackend) Recommendations(ctx context.Context) ([]queue.Track, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Track), args.Error(1)
}

type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) OnUserGesture()          { m.Called() }
func (m *MockPlayer) Load(track queue.Track)  { m.Called(track) }
func (m *MockPlayer) TogglePlay() error       { return m.Called().Error(0) }
func (m *MockPlayer) Play() error             { return m.Called().Error(0) }
func (m *MockPlayer) Pause() error            { return m.Called().Error(0) }
func (m *MockPlayer) SetShuffle(on bool)      { m.Called(on) }
func (m *MockPlayer) SetRepeat(on bool) error { return m.Called(on).Error(0) }
func (m *MockPlayer) SetMute(mute bool) error { return m.Called(mute).Error(0) }

func (m *MockPlayer) Seek(pos time.Duration) error {
	return m.Called(pos).Error(0)
}

func (m *MockPlayer) SetVolume(vol int) (int, error) {
	args := m.Called(vol)
	return args.Int(0), args.Error(1)
}

func (m *MockPlayer) ToggleMute() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockPlayer) ToggleShuffle() bool {
	return m.Called().Bool(0)
}

func (m *MockPlayer) ToggleRepeat() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh() { m.Called() }

func newDispatcher() (*Dispatcher, *MockBackend, *MockPlayer, *MockRefresher) {
	b := new(MockBackend)
	p := new(MockPlayer)
	r := new(MockRefresher)
	p.On("OnUserGesture").Maybe()
	return New(b, p, r, WithRequester("kitchen")), b, p, r
}

func TestSuggest(t *testing.T) {
	t.Run("success refreshes", func(t *testing.T) {
		d, b, p, r := newDispatcher()
		b.On("Suggest", mock.Anything, "never gonna", "kitchen").Return(queue.Track{ID: 7, Title: "Found"}, nil)
		r.On("Refresh").Once()

		track, err := d.Suggest(context.Background(), "  never gonna ")
		require.NoError(t, err)
		assert.Equal(t, "Found", track.Title)

		p.AssertCalled(t, "OnUserGesture")
		b.AssertExpectations(t)
		r.AssertExpectations(t)
	})

	t.Run("failure is a suggestion error", func(t *testing.T) {
		d, b, _, r := newDispatcher()
		notFound := errors.New("not found")
		b.On("Suggest", mock.Anything, "zzz", "kitchen").Return(queue.Track{}, notFound)

		_, err := d.Suggest(context.Background(), "zzz")
		assert.ErrorIs(t, err, ErrSuggestionFailed)
		assert.ErrorIs(t, err, notFound)
		r.AssertNotCalled(t, "Refresh")
	})

	t.Run("empty query", func(t *testing.T) {
		d, b, _, _ := newDispatcher()

		_, err := d.Suggest(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
		b.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestVote(t *testing.T) {
	d, b, p, r := newDispatcher()
	b.On("Vote", mock.Anything, int64(3), queue.VoteUp).Return(nil)
	r.On("Refresh").Once()

	require.NoError(t, d.Vote(context.Background(), 3, queue.VoteUp))

	p.AssertCalled(t, "OnUserGesture")
	b.AssertExpectations(t)
	r.AssertExpectations(t)
}

func TestVoteFailureDoesNotRefresh(t *testing.T) {
	d, b, _, r := newDispatcher()
	b.On("Vote", mock.Anything, int64(3), queue.VoteDown).Return(errors.New("boom"))

	assert.Error(t, d.Vote(context.Background(), 3, queue.VoteDown))
	r.AssertNotCalled(t, "Refresh")
}

func TestFavorite(t *testing.T) {
	d, b, _, r := newDispatcher()
	b.On("Favorite", mock.Anything, int64(5)).Return(nil)
	r.On("Refresh").Once()

	require.NoError(t, d.Favorite(context.Background(), 5))
	b.AssertExpectations(t)
	r.AssertExpectations(t)
}

func TestNext(t *testing.T) {
	t.Run("loads returned track", func(t *testing.T) {
		d, b, p, r := newDispatcher()
		next := &queue.Track{ID: 9, YouTubeID: "next1"}
		b.On("Next", mock.Anything).Return(next, nil)
		p.On("Load", *next).Once()
		r.On("Refresh").Once()

		require.NoError(t, d.Next(context.Background()))

		p.AssertExpectations(t)
		r.AssertExpectations(t)
		p.AssertNotCalled(t, "OnUserGesture")
	})

	t.Run("empty queue only refreshes", func(t *testing.T) {
		d, b, p, r := newDispatcher()
		b.On("Next", mock.Anything).Return(nil, nil)
		r.On("Refresh").Once()

		require.NoError(t, d.Next(context.Background()))
		p.AssertNotCalled(t, "Load", mock.Anything)
		r.AssertExpectations(t)
	})

	t.Run("skip is a gesture", func(t *testing.T) {
		d, b, p, r := newDispatcher()
		b.On("Next", mock.Anything).Return(nil, errors.New("offline"))

		assert.Error(t, d.Skip(context.Background()))
		p.AssertCalled(t, "OnUserGesture")
		r.AssertNotCalled(t, "Refresh")
	})
}

func TestPlaylists(t *testing.T) {
	d, b, _, r := newDispatcher()
	b.On("Playlists", mock.Anything).Return([]queue.Playlist{{ID: 1, Name: "Friday"}}, nil)
	b.On("CreatePlaylist", mock.Anything, "Monday").Return(queue.Playlist{ID: 2, Name: "Monday"}, nil)
	r.On("Refresh").Twice()

	playlists, err := d.Playlists(context.Background())
	require.NoError(t, err)
	assert.Len(t, playlists, 1)

	created, err := d.CreatePlaylist(context.Background(), " Monday ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	_, err = d.CreatePlaylist(context.Background(), "")
	assert.Error(t, err)

	b.AssertExpectations(t)
	r.AssertExpectations(t)
}

func TestRecommendations(t *testing.T) {
	d, b, _, r := newDispatcher()
	b.On("Recommendations", mock.Anything).Return([]queue.Track{{ID: 1}, {ID: 2}}, nil)
	r.On("Refresh").Once()

	tracks, err := d.Recommendations(context.Background())
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestPlayerCommandsAreGestures(t *testing.T) {
	d, _, p, r := newDispatcher()
	p.On("TogglePlay").Return(nil)
	p.On("Play").Return(nil)
	p.On("Pause").Return(nil)
	p.On("Seek", 90*time.Second).Return(nil)
	p.On("Seek", time.Duration(0)).Return(nil)
	p.On("SetVolume", 75).Return(75, nil)
	p.On("SetMute", true).Return(nil)
	p.On("ToggleMute").Return(false, nil)
	p.On("SetShuffle", true).Return()
	p.On("ToggleShuffle").Return(false)
	p.On("SetRepeat", true).Return(nil)
	p.On("ToggleRepeat").Return(false, nil)

	require.NoError(t, d.TogglePlay())
	require.NoError(t, d.Play())
	require.NoError(t, d.Pause())
	require.NoError(t, d.Seek(90))
	require.NoError(t, d.Seek(-3))
	vol, err := d.SetVolume(75)
	require.NoError(t, err)
	assert.Equal(t, 75, vol)
	require.NoError(t, d.SetMute(true))
	_, err = d.ToggleMute()
	require.NoError(t, err)
	d.SetShuffle(true)
	d.ToggleShuffle()
	require.NoError(t, d.SetRepeat(true))
	_, err = d.ToggleRepeat()
	require.NoError(t, err)
	d.EnableAudio()

	p.AssertExpectations(t)
	p.AssertNumberOfCalls(t, "OnUserGesture", 13)
	r.AssertNotCalled(t, "Refresh")
}

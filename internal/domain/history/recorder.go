// Package history records the tracks this jukebox has played.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
	"github.com/edumarques81/stellar-jukebox/internal/infra/cache"
)

const (
	// DefaultLimit is the number of entries Recent returns when asked for none.
	DefaultLimit = 20

	// MaxLimit caps a single Recent call.
	MaxLimit = 100

	writeTimeout = 5 * time.Second
)

// Store persists history entries.
type Store interface {
	RecordPlay(ctx context.Context, p cache.Play) error
	RecentPlays(ctx context.Context, limit int) ([]cache.Play, error)
}

// Recorder appends an entry each time the now-playing track changes.
type Recorder struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	lastID string
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// OnPollResult records state.NowPlaying if it differs from the last track
// seen. Nothing playing resets the last track, so a replay is recorded again.
func (r *Recorder) OnPollResult(state queue.PlaybackState) {
	r.mu.Lock()
	np := state.NowPlaying
	if np == nil || np.YouTubeID == "" {
		r.lastID = ""
		r.mu.Unlock()
		return
	}
	if np.YouTubeID == r.lastID {
		r.mu.Unlock()
		return
	}
	r.lastID = np.YouTubeID
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	play := cache.Play{
		SongID:    np.ID,
		YouTubeID: np.YouTubeID,
		Title:     np.Title,
		Artist:    np.Artist,
		PlayedAt:  r.now(),
	}
	if err := r.store.RecordPlay(ctx, play); err != nil {
		log.Warn().Err(err).Str("youtube_id", np.YouTubeID).Msg("Failed to record play")
		return
	}

	log.Debug().
		Int64("song_id", np.ID).
		Str("youtube_id", np.YouTubeID).
		Str("title", np.Title).
		Msg("Recorded play")
}

// Recent returns up to limit entries, newest first. limit is clamped to
// [1, MaxLimit]; zero or less means DefaultLimit.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]cache.Play, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return r.store.RecentPlays(ctx, limit)
}

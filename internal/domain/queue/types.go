// Package queue provides the shared queue types served by the jukebox backend.
package queue

import "fmt"

// VoteType is the direction of a vote on a queued track.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ParseVoteType converts a client supplied string into a VoteType.
func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case VoteUp, VoteDown:
		return VoteType(s), nil
	}
	return "", fmt.Errorf("invalid vote type %q", s)
}

// Track is one queue or now-playing entry. The backend owns it; the jukebox
// only ever holds the latest snapshot.
type Track struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	ThumbnailURL string `json:"thumbnail_url"`
	YouTubeID    string `json:"youtube_id"`
	IsFavorite   bool   `json:"is_favorite"`
	Duration     int    `json:"duration,omitempty"` // seconds, 0 when unknown
}

// PlaybackState is the shared state returned by GET /api/state.
type PlaybackState struct {
	NowPlaying *Track  `json:"now_playing"`
	Queue      []Track `json:"queue"`
}

// FindByYouTubeID returns the track with the given video id, looking at the
// now-playing entry first and then the queue.
func (s *PlaybackState) FindByYouTubeID(id string) (Track, bool) {
	if s == nil || id == "" {
		return Track{}, false
	}
	if s.NowPlaying != nil && s.NowPlaying.YouTubeID == id {
		return *s.NowPlaying, true
	}
	for _, t := range s.Queue {
		if t.YouTubeID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Playlist is a named collection stored by the backend.
type Playlist struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count,omitempty"`
}

// Package view turns the shared queue state and the local playback status
// into a toolkit-independent view model.
package view

import (
	"fmt"
	"time"

	"github.com/edumarques81/stellar-jukebox/internal/domain/playback"
	"github.com/edumarques81/stellar-jukebox/internal/domain/player"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

// Empty-state copy for the now-playing panel.
const (
	NothingPlayingTitle  = "Nothing Playing"
	NothingPlayingArtist = "Add a song or wait for AI..."
)

// Icon names a glyph; UIs map it to their own assets.
type Icon string

const (
	IconPlay         Icon = "play"
	IconPause        Icon = "pause"
	IconHeartFilled  Icon = "heart"
	IconHeartOutline Icon = "heart-outline"
	IconVolumeMuted  Icon = "volume-mute"
	IconVolumeLow    Icon = "volume-low"
	IconVolumeHigh   Icon = "volume-high"
	IconVoteUp       Icon = "vote-up"
	IconVoteDown     Icon = "vote-down"
)

// Glyph returns a text rendering of the icon for terminals.
func (i Icon) Glyph() string {
	switch i {
	case IconPlay:
		return "▶"
	case IconPause:
		return "⏸"
	case IconHeartFilled:
		return "♥"
	case IconHeartOutline:
		return "♡"
	case IconVolumeMuted:
		return "🔇"
	case IconVolumeLow:
		return "🔉"
	case IconVolumeHigh:
		return "🔊"
	case IconVoteUp:
		return "▲"
	case IconVoteDown:
		return "▼"
	}
	return ""
}

// View is everything a UI needs to draw the jukebox.
type View struct {
	NowPlaying NowPlaying  `json:"nowPlaying"`
	Queue      []QueueItem `json:"queue"`
	Progress   Progress    `json:"progress"`
	Controls   Controls    `json:"controls"`
	Player     PlayerInfo  `json:"player"`
}

// NowPlaying is the now-playing panel.
type NowPlaying struct {
	Empty        bool   `json:"empty"`
	SongID       int64  `json:"songId,omitempty"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	ArtURL       string `json:"artUrl,omitempty"`
	YouTubeID    string `json:"youtubeId,omitempty"`
	Favorite     bool   `json:"favorite"`
	FavoriteIcon Icon   `json:"favoriteIcon"`
}

// QueueItem is one row of the queue list.
type QueueItem struct {
	Position     int      `json:"position"`
	SongID       int64    `json:"songId"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	ArtURL       string   `json:"artUrl,omitempty"`
	YouTubeID    string   `json:"youtubeId"`
	Favorite     bool     `json:"favorite"`
	FavoriteIcon Icon     `json:"favoriteIcon"`
	Actions      []Action `json:"actions"`
}

// Action is a gesture a queue row offers. Event is the client event that
// performs it.
type Action struct {
	Icon     Icon           `json:"icon"`
	Event    string         `json:"event"`
	SongID   int64          `json:"songId"`
	VoteType queue.VoteType `json:"voteType,omitempty"`
}

// Progress is the playback position bar.
type Progress struct {
	Percent float64 `json:"percent"`
	Elapsed string  `json:"elapsed"`
	Total   string  `json:"total"`
}

// Controls are the transport and volume controls.
type Controls struct {
	PlayPauseIcon Icon `json:"playPauseIcon"`
	VolumeIcon    Icon `json:"volumeIcon"`
	Volume        int  `json:"volume"`
	Muted         bool `json:"muted"`
	Shuffle       bool `json:"shuffle"`
	Repeat        bool `json:"repeat"`
}

// PlayerInfo exposes the sync state for diagnostics.
type PlayerInfo struct {
	Ready        bool   `json:"ready"`
	State        string `json:"state"`
	Phase        string `json:"phase"`
	Attempt      int    `json:"attempt"`
	AudioEnabled bool   `json:"audioEnabled"`
}

// Render builds the view. The queue is rebuilt in full on every call.
func Render(state queue.PlaybackState, status playback.Status) View {
	v := View{
		NowPlaying: renderNowPlaying(state.NowPlaying),
		Queue:      make([]QueueItem, 0, len(state.Queue)),
		Progress:   renderProgress(state.NowPlaying, status),
		Controls: Controls{
			PlayPauseIcon: PlayPauseIcon(status.PlayerState),
			VolumeIcon:    VolumeIcon(status.Controls.Volume, status.Controls.Mute),
			Volume:        status.Controls.Volume,
			Muted:         status.Controls.Mute,
			Shuffle:       status.Controls.Shuffle,
			Repeat:        status.Controls.Repeat,
		},
		Player: PlayerInfo{
			Ready:        status.Ready,
			State:        status.PlayerState.String(),
			Phase:        status.Phase.String(),
			Attempt:      status.RetryCount,
			AudioEnabled: status.AudioEnabled,
		},
	}

	for i, t := range state.Queue {
		v.Queue = append(v.Queue, QueueItem{
			Position:     i + 1,
			SongID:       t.ID,
			Title:        t.Title,
			Artist:       t.Artist,
			ArtURL:       t.ThumbnailURL,
			YouTubeID:    t.YouTubeID,
			Favorite:     t.IsFavorite,
			FavoriteIcon: FavoriteIcon(t.IsFavorite),
			Actions: []Action{
				{Icon: IconVoteUp, Event: "vote", SongID: t.ID, VoteType: queue.VoteUp},
				{Icon: IconVoteDown, Event: "vote", SongID: t.ID, VoteType: queue.VoteDown},
				{Icon: FavoriteIcon(t.IsFavorite), Event: "favorite", SongID: t.ID},
			},
		})
	}

	return v
}

func renderNowPlaying(t *queue.Track) NowPlaying {
	if t == nil {
		return NowPlaying{
			Empty:        true,
			Title:        NothingPlayingTitle,
			Artist:       NothingPlayingArtist,
			FavoriteIcon: IconHeartOutline,
		}
	}
	return NowPlaying{
		SongID:       t.ID,
		Title:        t.Title,
		Artist:       t.Artist,
		ArtURL:       t.ThumbnailURL,
		YouTubeID:    t.YouTubeID,
		Favorite:     t.IsFavorite,
		FavoriteIcon: FavoriteIcon(t.IsFavorite),
	}
}

func renderProgress(t *queue.Track, status playback.Status) Progress {
	if t == nil {
		return Progress{Elapsed: FormatTime(0), Total: FormatTime(0)}
	}

	total := status.Duration
	if total <= 0 {
		total = time.Duration(t.Duration) * time.Second
	}
	pos := status.Position
	if pos < 0 {
		pos = 0
	}

	var pct float64
	if total > 0 {
		pct = float64(pos) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
	}

	return Progress{
		Percent: pct,
		Elapsed: FormatTime(pos),
		Total:   FormatTime(total),
	}
}

// FavoriteIcon returns the filled heart for favorites and the outline
// otherwise.
func FavoriteIcon(favorite bool) Icon {
	if favorite {
		return IconHeartFilled
	}
	return IconHeartOutline
}

// VolumeIcon picks the volume glyph: muted at 0 or when muted, low below 50,
// loud from 50 up.
func VolumeIcon(volume int, muted bool) Icon {
	switch {
	case muted || volume <= 0:
		return IconVolumeMuted
	case volume < 50:
		return IconVolumeLow
	default:
		return IconVolumeHigh
	}
}

// PlayPauseIcon shows pause while playing and play otherwise.
func PlayPauseIcon(st player.State) Icon {
	if st == player.StatePlaying {
		return IconPause
	}
	return IconPlay
}

// FormatTime renders d as m:ss.
func FormatTime(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

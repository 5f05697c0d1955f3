package socketio

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/command"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

// Commands is the gesture surface exposed to Socket.io clients.
type Commands interface {
	EnableAudio()
	Suggest(ctx context.Context, query string) (queue.Track, error)
	Vote(ctx context.Context, songID int64, vote queue.VoteType) error
	Favorite(ctx context.Context, songID int64) error
	Skip(ctx context.Context) error
	Playlists(ctx context.Context) ([]queue.Playlist, error)
	CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error)
	Recommendations(ctx context.Context) ([]queue.Track, error)
	TogglePlay() error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(vol int) (int, error)
	SetMute(mute bool) error
	SetShuffle(on bool)
	SetRepeat(on bool) error
}

// emitFunc sends one event to the calling client.
type emitFunc func(event string, payload any)

// handler serves one client event.
type handler func(ctx context.Context, args []any, emit emitFunc)

// Toast is the pushToastMessage payload.
type Toast struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// SuggestResult is the pushSuggestResult payload. Query holds the text the
// input box should show afterwards: empty on success, the original query on
// failure.
type SuggestResult struct {
	OK    bool         `json:"ok"`
	Query string       `json:"query"`
	Track *queue.Track `json:"track,omitempty"`
}

// statePayload is pushState: the view without the queue list.
type statePayload struct {
	NowPlaying view.NowPlaying `json:"nowPlaying"`
	Progress   view.Progress   `json:"progress"`
	Controls   view.Controls   `json:"controls"`
	Player     view.PlayerInfo `json:"player"`
}

func newStatePayload(v view.View) statePayload {
	return statePayload{
		NowPlaying: v.NowPlaying,
		Progress:   v.Progress,
		Controls:   v.Controls,
		Player:     v.Player,
	}
}

// handlers returns the client event table.
func (s *Server) handlers() map[string]handler {
	return map[string]handler{
		// State
		"getState": func(_ context.Context, _ []any, emit emitFunc) {
			emit("pushState", newStatePayload(s.views.View()))
		},
		"getQueue": func(_ context.Context, _ []any, emit emitFunc) {
			emit("pushQueue", s.views.View().Queue)
		},
		"getDeviceInfo": func(_ context.Context, _ []any, emit emitFunc) {
			emit("pushDeviceInfo", map[string]any{
				"uuid":    s.device.ID,
				"name":    s.device.Name,
				"type":    s.device.Type,
				"version": s.device.Version,
			})
		},
		"enableAudio": func(context.Context, []any, emitFunc) {
			s.commands.EnableAudio()
		},

		// Transport
		"play": func(context.Context, []any, emitFunc) {
			logFailure("Play", s.commands.Play())
		},
		"pause": func(context.Context, []any, emitFunc) {
			logFailure("Pause", s.commands.Pause())
		},
		"toggle": func(context.Context, []any, emitFunc) {
			logFailure("TogglePlay", s.commands.TogglePlay())
		},
		"next": func(ctx context.Context, _ []any, _ emitFunc) {
			logFailure("Next", s.commands.Skip(ctx))
		},
		"seek": func(_ context.Context, args []any, _ emitFunc) {
			pos, ok := getFloatFromMap(payload(args), "value")
			if !ok {
				return
			}
			logFailure("Seek", s.commands.Seek(pos))
		},
		"volume": func(_ context.Context, args []any, _ emitFunc) {
			vol := getIntFromMap(payload(args), "value", -1)
			if vol < 0 {
				return
			}
			_, err := s.commands.SetVolume(vol)
			logFailure("SetVolume", err)
		},
		"mute": func(_ context.Context, args []any, _ emitFunc) {
			mute, ok := getBoolFromMap(payload(args), "value")
			if !ok {
				mute = true
			}
			logFailure("SetMute", s.commands.SetMute(mute))
		},
		"unmute": func(context.Context, []any, emitFunc) {
			logFailure("SetMute", s.commands.SetMute(false))
		},
		"setRandom": func(_ context.Context, args []any, _ emitFunc) {
			if on, ok := getBoolFromMap(payload(args), "value"); ok {
				s.commands.SetShuffle(on)
			}
		},
		"setRepeat": func(_ context.Context, args []any, _ emitFunc) {
			if on, ok := getBoolFromMap(payload(args), "value"); ok {
				logFailure("SetRepeat", s.commands.SetRepeat(on))
			}
		},

		// Queue
		"suggest":  s.handleSuggest,
		"vote":     s.handleVote,
		"favorite": s.handleFavorite,

		// Playlists and recommendations
		"getPlaylists": func(ctx context.Context, _ []any, emit emitFunc) {
			s.pushPlaylists(ctx, emit)
		},
		"createPlaylist": func(ctx context.Context, args []any, emit emitFunc) {
			name := getStringFromMap(payload(args), "name")
			if name == "" {
				name = getStringFromMap(payload(args), "value")
			}
			if _, err := s.commands.CreatePlaylist(ctx, name); err != nil {
				logFailure("CreatePlaylist", err)
				return
			}
			s.pushPlaylists(ctx, emit)
		},
		"getRecommendations": func(ctx context.Context, _ []any, emit emitFunc) {
			tracks, err := s.commands.Recommendations(ctx)
			if err != nil {
				logFailure("Recommendations", err)
				return
			}
			emit("pushRecommendations", tracks)
		},
	}
}

func (s *Server) handleSuggest(ctx context.Context, args []any, emit emitFunc) {
	m := payload(args)
	query := getStringFromMap(m, "query")
	if query == "" {
		query = getStringFromMap(m, "value")
	}

	track, err := s.commands.Suggest(ctx, query)
	switch {
	case err == nil:
		emit("pushSuggestResult", SuggestResult{OK: true, Track: &track})
	case errors.Is(err, command.ErrEmptyQuery):
		return
	case errors.Is(err, command.ErrSuggestionFailed):
		log.Warn().Err(err).Str("query", query).Msg("Suggest failed")
		emit("pushToastMessage", Toast{Type: "error", Title: "Suggest", Message: command.SuggestionFailedMessage})
		emit("pushSuggestResult", SuggestResult{Query: query})
	default:
		logFailure("Suggest", err)
		emit("pushSuggestResult", SuggestResult{Query: query})
	}
}

func (s *Server) handleVote(ctx context.Context, args []any, _ emitFunc) {
	m := payload(args)
	id, ok := songID(m)
	if !ok {
		log.Warn().Interface("data", args).Msg("vote without song id")
		return
	}

	raw := getStringFromMap(m, "voteType")
	if raw == "" {
		raw = getStringFromMap(m, "vote_type")
	}
	vote, err := queue.ParseVoteType(raw)
	if err != nil {
		log.Warn().Err(err).Int64("song_id", id).Msg("vote rejected")
		return
	}

	logFailure("Vote", s.commands.Vote(ctx, id, vote))
}

func (s *Server) handleFavorite(ctx context.Context, args []any, _ emitFunc) {
	id, ok := songID(payload(args))
	if !ok {
		log.Warn().Interface("data", args).Msg("favorite without song id")
		return
	}
	logFailure("Favorite", s.commands.Favorite(ctx, id))
}

func (s *Server) pushPlaylists(ctx context.Context, emit emitFunc) {
	playlists, err := s.commands.Playlists(ctx)
	if err != nil {
		logFailure("Playlists", err)
		return
	}
	emit("pushPlaylists", playlists)
}

func logFailure(op string, err error) {
	if err != nil {
		log.Error().Err(err).Msg(op + " failed")
	}
}

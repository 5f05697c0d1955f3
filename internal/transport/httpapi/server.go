// Package httpapi is the jukebox's plain HTTP surface: health, version, the
// rendered view, play history, artwork thumbnails and an optional static UI.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
	"github.com/edumarques81/stellar-jukebox/internal/infra/artwork"
	"github.com/edumarques81/stellar-jukebox/internal/infra/cache"
	"github.com/edumarques81/stellar-jukebox/internal/version"
)

// Views exposes the presenter's current data.
type Views interface {
	View() view.View
	State() queue.PlaybackState
}

// Thumbnailer produces downsized artwork.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, key, sourceURL string) ([]byte, error)
}

// History lists recently played tracks.
type History interface {
	Recent(ctx context.Context, limit int) ([]cache.Play, error)
}

// Server wires the HTTP routes.
type Server struct {
	views     Views
	artwork   Thumbnailer
	history   History
	ready     func() bool
	staticDir string
	socketIO  http.Handler
	feed      http.Handler
	origins   []string
}

// Option configures a Server.
type Option func(*Server)

// WithReadiness reports player readiness on /health.
func WithReadiness(ready func() bool) Option {
	return func(s *Server) {
		s.ready = ready
	}
}

// WithHistory serves the play history on /api/v1/history.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithAllowedOrigins limits which browser origins may read the API. Empty
// allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithStaticDir serves a single-page UI from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithSocketIO mounts a Socket.io handler at /socket.io/.
func WithSocketIO(h http.Handler) Option {
	return func(s *Server) {
		s.socketIO = h
	}
}

// WithFeed mounts the read-only view feed at /ws.
func WithFeed(h http.Handler) Option {
	return func(s *Server) {
		s.feed = h
	}
}

// NewServer creates the HTTP surface.
func NewServer(views Views, thumbs Thumbnailer, opts ...Option) *Server {
	s := &Server{
		views:   views,
		artwork: thumbs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	if s.socketIO != nil {
		// Socket.io answers its own CORS preflights.
		r.Handle("/socket.io/*", s.socketIO)
	}
	if s.feed != nil {
		r.Handle("/ws", s.feed)
	}

	r.Group(func(r chi.Router) {
		r.Use(CORS(s.origins))

		r.Get("/health", s.handleHealth)
		r.Get("/api/v1/version", s.handleVersion)
		r.Get("/api/v1/view", s.handleView)
		if s.history != nil {
			r.Get("/api/v1/history", s.handleHistory)
		}
		r.Get("/artwork/{youtubeID}", s.handleArtwork)
	})

	if s.staticDir != "" {
		log.Info().Str("dir", s.staticDir).Msg("Serving static files")
		r.Get("/*", s.handleStatic)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"player": "disconnected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"player": "connected",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.views.View())
}

// handleHistory lists recent plays. ?limit bounds the result; the history
// clamps it.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	plays, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("History query failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, plays)
}

// handleArtwork serves the thumbnail of a track currently playing or queued.
// Only known tracks are proxied, so the endpoint cannot fetch arbitrary URLs.
func (s *Server) handleArtwork(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "youtubeID")

	state := s.views.State()
	track, ok := state.FindByYouTubeID(id)
	if !ok || track.ThumbnailURL == "" {
		http.Error(w, "album art not found", http.StatusNotFound)
		return
	}

	data, err := s.artwork.Thumbnail(r.Context(), id, track.ThumbnailURL)
	if err != nil {
		if errors.Is(err, artwork.ErrNotFound) {
			http.Error(w, "album art not found", http.StatusNotFound)
			return
		}
		log.Warn().Err(err).Str("youtube_id", id).Msg("Artwork fetch failed")
		http.Error(w, "artwork unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// handleStatic serves files from the static dir, falling back to index.html
// for client-side routes.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.staticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
		return
	}
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// RequestLogger logs each request through zerolog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

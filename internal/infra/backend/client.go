// Package backend is a client for the jukebox queue API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
	"github.com/edumarques81/stellar-jukebox/internal/version"
)

const (
	// DefaultBaseURL is where the queue API listens in development.
	DefaultBaseURL = "http://localhost:8000/api"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// SessionHeader carries the session uuid on every request.
	SessionHeader = "X-Jukebox-Session"
)

var (
	// ErrNotFound is returned for 404 responses, e.g. a suggestion that
	// matched no song.
	ErrNotFound = errors.New("not found")

	// ErrUnexpectedStatus wraps any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Client talks to the queue API.
type Client struct {
	baseURL    string
	userAgent  string
	session    string
	httpClient *http.Client
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithBaseURL sets the API base URL, including the /api prefix.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSession sets the session id sent in SessionHeader.
func WithSession(id string) Option {
	return func(c *Client) {
		c.session = id
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new queue API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: version.UserAgent(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type suggestRequest struct {
	Query       string `json:"query"`
	RequestedBy string `json:"requested_by,omitempty"`
}

type voteRequest struct {
	SongID   int64          `json:"song_id"`
	VoteType queue.VoteType `json:"vote_type"`
}

type createPlaylistRequest struct {
	Name string `json:"name"`
}

// State fetches the now-playing track and the queue.
func (c *Client) State(ctx context.Context) (queue.PlaybackState, error) {
	var state queue.PlaybackState
	if err := c.do(ctx, http.MethodGet, "/state", nil, &state); err != nil {
		return queue.PlaybackState{}, err
	}
	return state, nil
}

// Suggest asks the backend to find a song for query and queue it. A query
// that matches nothing returns ErrNotFound.
func (c *Client) Suggest(ctx context.Context, query, requestedBy string) (queue.Track, error) {
	var track queue.Track
	body := suggestRequest{Query: query, RequestedBy: requestedBy}
	if err := c.do(ctx, http.MethodPost, "/suggest", body, &track); err != nil {
		return queue.Track{}, err
	}
	return track, nil
}

// Vote records an up or down vote for a queued song.
func (c *Client) Vote(ctx context.Context, songID int64, vote queue.VoteType) error {
	return c.do(ctx, http.MethodPost, "/vote", voteRequest{SongID: songID, VoteType: vote}, nil)
}

// Next pops the next track off the queue. It returns nil when the queue is
// empty.
func (c *Client) Next(ctx context.Context) (*queue.Track, error) {
	var track *queue.Track
	if err := c.do(ctx, http.MethodPost, "/next", nil, &track); err != nil {
		return nil, err
	}
	return track, nil
}

// Favorite toggles the favorite flag of a song.
func (c *Client) Favorite(ctx context.Context, songID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/favorite/%d", songID), nil, nil)
}

// Playlists lists saved playlists.
func (c *Client) Playlists(ctx context.Context) ([]queue.Playlist, error) {
	var playlists []queue.Playlist
	if err := c.do(ctx, http.MethodGet, "/playlists", nil, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// CreatePlaylist creates a named playlist.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error) {
	var playlist queue.Playlist
	if err := c.do(ctx, http.MethodPost, "/playlists", createPlaylistRequest{Name: name}, &playlist); err != nil {
		return queue.Playlist{}, err
	}
	return playlist, nil
}

// Recommendations returns tracks the backend suggests for the room.
func (c *Client) Recommendations(ctx context.Context) ([]queue.Track, error) {
	var tracks []queue.Track
	if err := c.do(ctx, http.MethodGet, "/recommendations", nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}

	log.Debug().Str("method", method).Str("url", reqURL).Msg("Backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %w: %d %s", method, path, ErrUnexpectedStatus,
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package mpd wraps the gompd client with lazy reconnects, a typed status
// and a context-scoped idle watcher.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when a command is issued before Connect succeeded.
var ErrNotConnected = errors.New("mpd: not connected")

const watchRetryDelay = time.Second

// Client is a single MPD command connection.
type Client struct {
	addr     string
	password string

	mu   sync.Mutex
	conn *mpd.Client
}

// NewClient creates a client for host:port. Nothing is dialed until Connect.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		password: password,
	}
}

// Addr returns the host:port the client dials.
func (c *Client) Addr() string {
	return c.addr
}

// Connect dials MPD and authenticates when a password is set.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked()
}

func (c *Client) dialLocked() error {
	log.Info().Str("addr", c.addr).Msg("Connecting to MPD")

	conn, err := mpd.DialAuthenticated("tcp", c.addr, c.password)
	if err != nil {
		return fmt.Errorf("connect to MPD at %s: %w", c.addr, err)
	}

	c.conn = conn
	log.Info().Msg("Connected to MPD")
	return nil
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether Connect has succeeded and Close was not called.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Ping checks the connection without trying to repair it.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Ping()
}

// exec runs fn on the connection. A connection that fails a ping is redialed
// once; a client that never connected stays disconnected.
func (c *Client) exec(fn func(*mpd.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting")
		c.conn.Close()
		c.conn = nil
		if err := c.dialLocked(); err != nil {
			return err
		}
	}
	return fn(c.conn)
}

// Status returns the parsed player status.
func (c *Client) Status() (Status, error) {
	var attrs mpd.Attrs
	err := c.exec(func(conn *mpd.Client) (err error) {
		attrs, err = conn.Status()
		return err
	})
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(attrs), nil
}

// Play starts the item at pos, or resumes the current one when pos < 0.
func (c *Client) Play(pos int) error {
	return c.exec(func(conn *mpd.Client) error { return conn.Play(max(pos, -1)) })
}

// Pause sets the pause state.
func (c *Client) Pause(pause bool) error {
	return c.exec(func(conn *mpd.Client) error { return conn.Pause(pause) })
}

// Stop stops playback.
func (c *Client) Stop() error {
	return c.exec(func(conn *mpd.Client) error { return conn.Stop() })
}

// SeekCur seeks within the current item to an absolute position.
func (c *Client) SeekCur(pos time.Duration) error {
	return c.exec(func(conn *mpd.Client) error { return conn.SeekCur(pos, false) })
}

// SetVolume sets the mixer volume, clamped to 0-100.
func (c *Client) SetVolume(vol int) error {
	vol = min(max(vol, 0), 100)
	return c.exec(func(conn *mpd.Client) error { return conn.SetVolume(vol) })
}

// SetRepeat sets repeat mode.
func (c *Client) SetRepeat(on bool) error {
	return c.exec(func(conn *mpd.Client) error { return conn.Repeat(on) })
}

// SetSingle sets single mode.
func (c *Client) SetSingle(on bool) error {
	return c.exec(func(conn *mpd.Client) error { return conn.Single(on) })
}

// ReplaceAndPlay clears the queue, adds uri and starts it in one command list.
func (c *Client) ReplaceAndPlay(uri string) error {
	return c.exec(func(conn *mpd.Client) error {
		cl := conn.BeginCommandList()
		cl.Clear()
		cl.Add(uri)
		cl.Play(0)
		if err := cl.End(); err != nil {
			return fmt.Errorf("replace queue with %s: %w", uri, err)
		}
		return nil
	})
}

// Watch opens a separate idle connection and streams the names of changed
// subsystems until ctx is done or the watcher fails for good. The channel is
// closed on return.
func (c *Client) Watch(ctx context.Context, subsystems ...string) (<-chan string, error) {
	w, err := mpd.NewWatcher("tcp", c.addr, c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("start MPD watcher: %w", err)
	}

	ch := make(chan string, 10)
	go func() {
		defer close(ch)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case name, ok := <-w.Event:
				if !ok {
					return
				}
				select {
				case ch <- name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				select {
				case <-time.After(watchRetryDelay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

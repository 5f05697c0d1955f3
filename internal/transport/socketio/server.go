// Package socketio serves the jukebox view and gesture events over Socket.io.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-jukebox/internal/domain/session"
	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

// requestTimeout bounds backend calls made on behalf of one event.
const requestTimeout = 10 * time.Second

// Views renders the current view.
type Views interface {
	View() view.View
}

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	commands  Commands
	views     Views
	device    session.Info
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer
	window    time.Duration

	mu        sync.RWMutex
	clients   map[string]*socket.Socket
	lastState *statePayload
}

// Option configures a Server.
type Option func(*Server)

// WithConnectionLimit caps concurrent remote clients; 0 means no cap.
func WithConnectionLimit(maxRemote int) Option {
	return func(s *Server) {
		s.limiter = NewConnectionLimiter(maxRemote)
	}
}

// WithDebounceWindow overrides DefaultDebounceWindow.
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Server) {
		s.window = d
	}
}

// NewServer creates a Socket.io server. device is reported on getDeviceInfo.
func NewServer(commands Commands, views Views, device session.Info, opts ...Option) *Server {
	sopts := socket.DefaultServerOptions()
	sopts.SetPingTimeout(20 * time.Second)
	sopts.SetPingInterval(25 * time.Second)
	sopts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:       socket.NewServer(nil, sopts),
		commands: commands,
		views:    views,
		device:   device,
		limiter:  NewConnectionLimiter(0),
		window:   DefaultDebounceWindow,
		clients:  make(map[string]*socket.Socket),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewBroadcastDebouncer(s.window, s.BroadcastState, s.BroadcastQueue)

	s.setupHandlers()

	return s
}

// setupHandlers registers the connection handler and per-client events.
func (s *Server) setupHandlers() {
	table := s.handlers()

	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if evicted := s.limiter.Admit(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		go func() {
			time.Sleep(100 * time.Millisecond)
			v := s.views.View()
			client.Emit("pushState", newStatePayload(v))
			client.Emit("pushQueue", v.Queue)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		emit := func(event string, payload any) {
			client.Emit(event, payload)
		}
		for event, h := range table {
			client.On(event, func(args ...any) {
				log.Debug().Str("id", clientID).Interface("data", args).Msg(event)
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				h(ctx, args, emit)
			})
		}
	})
}

func (s *Server) evict(clientID string) {
	s.mu.RLock()
	victim, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	log.Info().Str("id", clientID).Msg("Evicting oldest remote client")
	victim.Emit("pushToastMessage", Toast{
		Type:    "warning",
		Title:   "Disconnected",
		Message: "Too many devices connected.",
	})
	victim.Disconnect(true)
}

// Notify is a view.Subscriber; changes are debounced before broadcasting.
func (s *Server) Notify(change view.Change, _ view.View) {
	s.debouncer.Trigger(change)
}

// BroadcastState sends the now-playing state to all connected clients. A
// state equal to the last broadcast is dropped.
func (s *Server) BroadcastState() {
	state := newStatePayload(s.views.View())
	if !s.saveLastState(state) {
		return
	}
	s.io.Emit("pushState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		log.Debug().RawJSON("state", data).Int("clients", s.ClientCount()).Msg("Broadcast state")
	}
}

// saveLastState records state and reports whether it differs from the
// previous broadcast.
func (s *Server) saveLastState(state statePayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastState != nil && *s.lastState == state {
		return false
	}
	s.lastState = &state
	return true
}

// BroadcastQueue sends the queue to all connected clients.
func (s *Server) BroadcastQueue() {
	s.io.Emit("pushQueue", s.views.View().Queue)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops pending broadcasts and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

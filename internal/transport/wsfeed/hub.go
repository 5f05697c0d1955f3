// Package wsfeed pushes the rendered jukebox view to read-only WebSocket
// clients such as wall displays.
package wsfeed

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

// Message is one frame on the feed.
type Message struct {
	Type string    `json:"type"`
	View view.View `json:"view"`
}

// Hub owns the connected clients and fans out view frames.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan int
	done       chan struct{}

	// last frame, replayed to new clients
	last []byte
}

// NewHub creates a hub; call Run before serving clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan int),
		done:       make(chan struct{}),
	}
}

// Run is the hub event loop. It closes every client when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("View feed started")
	defer log.Info().Msg("View feed stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.last != nil {
				client.send <- h.last
			}
			log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("Feed client registered")

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}

		case message := <-h.broadcast:
			h.last = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Warn().Str("remote", client.conn.RemoteAddr().String()).Msg("Feed client too slow, dropping")
					h.drop(client)
				}
			}

		case h.count <- len(h.clients):
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
}

// Publish is a view.Subscriber. It never blocks: when the hub is behind the
// frame is dropped, the next one carries the full view anyway.
func (h *Hub) Publish(change view.Change, v view.View) {
	data, err := json.Marshal(Message{Type: change.String(), View: v})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode view frame")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Debug().Str("type", change.String()).Msg("Feed busy, frame dropped")
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients(ctx context.Context) int {
	select {
	case n := <-h.count:
		return n
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}

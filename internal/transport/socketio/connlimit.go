package socketio

import (
	"net"
	"slices"
	"sync"
)

// ConnectionLimiter caps concurrent remote UI connections. Loopback clients
// (a kiosk screen on the jukebox itself) are never limited. When a new remote
// client exceeds the cap, the oldest remote client is evicted.
type ConnectionLimiter struct {
	mu        sync.Mutex
	maxRemote int
	remote    []string          // oldest first
	clients   map[string]string // clientID -> host
}

// NewConnectionLimiter creates a limiter. maxRemote <= 0 disables the cap.
func NewConnectionLimiter(maxRemote int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxRemote: maxRemote,
		clients:   make(map[string]string),
	}
}

// Admit registers clientID connecting from addr ("host" or "host:port") and
// returns the id of a client to disconnect, or "".
func (cl *ConnectionLimiter) Admit(clientID, addr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[clientID]; ok {
		return ""
	}

	host := hostOf(addr)
	cl.clients[clientID] = host
	if isLoopback(host) {
		return ""
	}

	cl.remote = append(cl.remote, clientID)
	if cl.maxRemote <= 0 || len(cl.remote) <= cl.maxRemote {
		return ""
	}

	evictedID = cl.remote[0]
	cl.remote = cl.remote[1:]
	delete(cl.clients, evictedID)
	return evictedID
}

// Remove forgets a disconnected client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[clientID]; !ok {
		return
	}
	delete(cl.clients, clientID)
	cl.remote = slices.DeleteFunc(cl.remote, func(id string) bool { return id == clientID })
}

// Remote returns the number of tracked remote clients.
func (cl *ConnectionLimiter) Remote() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.remote)
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Package session gives this jukebox process an identity for the queue API
// and connected UIs.
package session

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/version"
)

// DefaultName is used when neither a configured name nor a hostname exist.
const DefaultName = "Stellar Jukebox"

// Info describes the running jukebox.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
}

// Session holds the per-process identity. A new id is generated on every
// start.
type Session struct {
	info Info
}

// New creates a session. An empty name falls back to the hostname.
func New(name string) *Session {
	if name == "" {
		name = defaultName()
	}

	s := &Session{
		info: Info{
			ID:        uuid.New().String(),
			Name:      name,
			Type:      "jukebox",
			Version:   version.Version,
			StartedAt: time.Now().UTC(),
		},
	}

	log.Info().
		Str("session", s.info.ID).
		Str("name", s.info.Name).
		Msg("Session initialized")

	return s
}

// ID returns the session uuid.
func (s *Session) ID() string {
	return s.info.ID
}

// Name returns the display name, sent as requested_by on suggestions.
func (s *Session) Name() string {
	return s.info.Name
}

// Info returns the session description.
func (s *Session) Info() Info {
	return s.info
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return DefaultName
	}
	return hostname
}

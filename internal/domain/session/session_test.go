package session

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew_GeneratesUUID(t *testing.T) {
	s := New("kitchen")

	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("ID %q is not a valid uuid: %v", s.ID(), err)
	}
	if s.Name() != "kitchen" {
		t.Errorf("Name() = %q, want %q", s.Name(), "kitchen")
	}

	info := s.Info()
	if info.Type != "jukebox" {
		t.Errorf("Type = %q, want jukebox", info.Type)
	}
	if info.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestNew_UniquePerProcessStart(t *testing.T) {
	a := New("a")
	b := New("b")

	if a.ID() == b.ID() {
		t.Error("each session should get a fresh uuid")
	}
}

func TestNew_DefaultName(t *testing.T) {
	s := New("")

	if s.Name() == "" {
		t.Error("Name should fall back to hostname or default")
	}
}

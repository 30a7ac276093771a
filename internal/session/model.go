package session

import (
	"io"
	"sync"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
)

// DefaultTTL is how long a session stays votable after creation.
const DefaultTTL = 30 * time.Minute

// State is the position of a session in its lifecycle.
type State int

const (
	Created State = iota
	Voted
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Voted:
		return "voted"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// Side labels one of the two anonymous outputs.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// ParseSide accepts "a" or "b".
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	}
	return "", apperr.InvalidInput("side must be %q or %q, got %q", SideA, SideB, s)
}

func (s Side) index() int {
	if s == SideB {
		return 1
	}
	return 0
}

// Artifact is a generated output held by a session until it is destroyed.
// Release must tolerate being called more than once.
type Artifact interface {
	ContentType() string
	Open() (io.ReadCloser, error)
	Release() error
}

// Spec describes a session to create. Candidates[0] is side a.
type Spec struct {
	Input      string
	Category   candidate.Category
	VoterID    string
	Candidates [2]string
	Artifacts  [2]Artifact
}

type session struct {
	id         string
	input      string
	category   candidate.Category
	voterID    string
	candidates [2]string
	artifacts  [2]Artifact
	createdAt  time.Time
	expiresAt  time.Time

	// guarded by Manager.mu
	state State

	releaseOnce sync.Once
}

func (s *session) expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// Info is a read-only snapshot of a session for the admin surface. It never
// carries candidate identities.
type Info struct {
	ID        string             `json:"id"`
	Category  candidate.Category `json:"category"`
	VoterID   string             `json:"voterId,omitempty"`
	State     string             `json:"state"`
	CreatedAt time.Time          `json:"createdAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

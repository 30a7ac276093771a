// Package session holds the short-lived two-candidate comparison sessions.
// Sessions live in memory only; each accepts at most one vote and releases
// its artifacts exactly once when destroyed.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"github.com/SlpAus/arena-ranking-backend/pkg/lifecycle"
	"github.com/google/uuid"
)

// Manager owns the session table. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewManager(ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
}

// TTL is how long new sessions stay votable.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateSession stores a new session and returns its unpredictable id.
func (m *Manager) CreateSession(spec Spec) (string, error) {
	a, b := spec.Candidates[0], spec.Candidates[1]
	switch {
	case a == "" || b == "":
		return "", apperr.InvalidInput("both candidates are required")
	case a == b:
		return "", apperr.InvalidInput("a session needs two different candidates")
	case spec.Artifacts[0] == nil || spec.Artifacts[1] == nil:
		return "", apperr.InvalidInput("both artifacts are required")
	case strings.TrimSpace(spec.Input) == "":
		return "", apperr.InvalidInput("input text is required")
	}

	now := m.now().UTC()
	s := &session{
		id:         uuid.NewString(),
		input:      spec.Input,
		category:   spec.Category,
		voterID:    spec.VoterID,
		candidates: spec.Candidates,
		artifacts:  spec.Artifacts,
		createdAt:  now,
		expiresAt:  now.Add(m.ttl),
		state:      Created,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	return s.id, nil
}

// lookup returns the live session id, or destroys it and reports Expired
// when its TTL has passed. Must be called with mu held; the returned
// expired session must be released by the caller after unlocking.
func (m *Manager) lookup(id string, now time.Time) (s *session, expired *session, err error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil, apperr.NotFound("session %q not found", id)
	}
	if s.expired(now) {
		m.removeLocked(s)
		return nil, s, apperr.New(apperr.KindExpired, "session %q has expired", id)
	}
	return s, nil, nil
}

func (m *Manager) removeLocked(s *session) {
	s.state = Destroyed
	delete(m.sessions, s.id)
}

// ResolveArtifact returns the artifact for side while the session is live.
func (m *Manager) ResolveArtifact(id string, side Side) (Artifact, error) {
	if _, err := ParseSide(string(side)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	s, expired, err := m.lookup(id, m.now())
	m.mu.Unlock()
	if err != nil {
		m.release(expired)
		return nil, err
	}
	return s.artifacts[side.index()], nil
}

// SubmitVote marks the session voted and returns a Ballot naming winner and
// loser. Expiry is checked before the voted state, so an expired session
// always reports Expired.
func (m *Manager) SubmitVote(id string, side Side) (*Ballot, error) {
	if _, err := ParseSide(string(side)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	s, expired, err := m.lookup(id, m.now())
	if err == nil && s.state != Created {
		err = apperr.New(apperr.KindAlreadyVoted, "session %q has already been voted on", id)
	}
	if err != nil {
		m.mu.Unlock()
		m.release(expired)
		return nil, err
	}
	s.state = Voted
	m.mu.Unlock()

	w := side.index()
	return &Ballot{
		SessionID: s.id,
		Input:     s.input,
		Category:  s.category,
		VoterID:   s.voterID,
		WinnerID:  s.candidates[w],
		LoserID:   s.candidates[1-w],
		manager:   m,
		session:   s,
	}, nil
}

// Destroy removes the session and releases its artifacts. Unknown ids are
// ignored.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		m.removeLocked(s)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		m.release(s)
		m.metrics.SetActiveSessions(n)
	}
}

// Sweep destroys every session whose expiry is at or before now and returns
// how many it removed. Artifacts are released after the table lock is dropped.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*session
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.expired(now) {
			m.removeLocked(s)
			expired = append(expired, s)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		m.release(s)
	}
	m.metrics.SetActiveSessions(n)
	m.metrics.SessionsSwept(len(expired))
	return len(expired)
}

// DestroyAll removes every session regardless of expiry, on shutdown.
func (m *Manager) DestroyAll() int {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		m.removeLocked(s)
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.release(s)
	}
	m.metrics.SetActiveSessions(0)
	return len(all)
}

// Active returns the number of sessions in the table.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// List returns a snapshot of the live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{
			ID:        s.id,
			Category:  s.category,
			VoterID:   s.voterID,
			State:     s.state.String(),
			CreatedAt: s.createdAt,
			ExpiresAt: s.expiresAt,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// release frees both artifacts of s once. nil is ignored.
func (m *Manager) release(s *session) {
	if s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		for i, a := range s.artifacts {
			if err := a.Release(); err != nil {
				m.log.Warn("release artifact failed", "session", s.id, "side", i, "error", err)
			}
		}
	})
}

// StartSweeper runs Sweep every interval until handle is cancelled.
func (m *Manager) StartSweeper(handle *lifecycle.Handle, interval time.Duration) {
	go func() {
		defer handle.Close()
		for {
			if err := handle.Sleep(interval); err != nil {
				m.log.Info("session sweeper stopped")
				return
			}
			if n := m.Sweep(m.now()); n > 0 {
				m.log.Debug("swept expired sessions", "count", n)
			}
		}
	}()
}

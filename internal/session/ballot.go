package session

import (
	"sync"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
)

// Ballot is the outcome of a successful SubmitVote. The caller records it
// and then either commits it or rolls it back so the session can be voted on
// again. A Ballot is not safe for concurrent use.
type Ballot struct {
	SessionID string
	Input     string
	Category  candidate.Category
	VoterID   string
	WinnerID  string
	LoserID   string

	manager   *Manager
	session   *session
	committed bool
	once      sync.Once
}

// Commit keeps the vote. Later rollbacks are no-ops.
func (b *Ballot) Commit() {
	b.committed = true
}

// RollbackUnlessCommitted returns the session to Created if the vote was not
// committed and the session still exists.
func (b *Ballot) RollbackUnlessCommitted() {
	if b.committed {
		return
	}
	b.once.Do(func() {
		b.manager.mu.Lock()
		defer b.manager.mu.Unlock()
		if b.session.state == Voted {
			b.session.state = Created
		}
	})
}

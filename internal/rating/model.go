package rating

import (
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
)

// MaxInputRunes bounds the stored prompt text.
const MaxInputRunes = 1000

// Vote is one accepted comparison outcome. Rows are append-only and their
// ids define ledger order.
type Vote struct {
	ID       uint               `gorm:"primaryKey" json:"id"`
	VoterID  *string            `gorm:"size:64;index" json:"voterId"`
	Input    string             `gorm:"size:4000;not null" json:"input"`
	VotedAt  time.Time          `gorm:"not null;index" json:"votedAt"`
	WinnerID string             `gorm:"size:100;not null;index" json:"winnerId"`
	LoserID  string             `gorm:"size:100;not null;index" json:"loserId"`
	Category candidate.Category `gorm:"size:20;not null;index" json:"category"`
}

// HistoryEntry is a candidate's rating right after a vote was applied.
// VoteID is nil for seed entries.
type HistoryEntry struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	CandidateID string             `gorm:"size:100;not null;index:idx_history_candidate_time" json:"candidateId"`
	Category    candidate.Category `gorm:"size:20;not null;index" json:"category"`
	Rating      float64            `gorm:"not null" json:"rating"`
	RecordedAt  time.Time          `gorm:"not null;index:idx_history_candidate_time" json:"recordedAt"`
	VoteID      *uint              `gorm:"index" json:"voteId"`
}

func (HistoryEntry) TableName() string { return "rating_history" }

// Outcome is the input to RecordOutcome. A nil VoterID is an anonymous vote.
type Outcome struct {
	VoterID  *string
	Input    string
	WinnerID string
	LoserID  string
	Category candidate.Category
}

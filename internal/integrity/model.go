package integrity

import (
	"time"

	"gorm.io/datatypes"
)

// BiasSeverity grades the strongest single-candidate preference of a voter.
type BiasSeverity int

const (
	BiasNone BiasSeverity = iota
	BiasHigh
	BiasVeryHigh
	BiasExtreme
)

// SeverityFor maps a chosen/appeared ratio to its severity.
func SeverityFor(ratio float64) BiasSeverity {
	switch {
	case ratio >= 0.95:
		return BiasExtreme
	case ratio >= 0.90:
		return BiasVeryHigh
	case ratio >= 0.80:
		return BiasHigh
	}
	return BiasNone
}

// Penalty is the trust score deduction for the severity.
func (s BiasSeverity) Penalty() int {
	switch s {
	case BiasExtreme:
		return 30
	case BiasVeryHigh:
		return 20
	case BiasHigh:
		return 10
	}
	return 0
}

func (s BiasSeverity) String() string {
	switch s {
	case BiasHigh:
		return "high"
	case BiasVeryHigh:
		return "very_high"
	case BiasExtreme:
		return "extreme"
	}
	return "none"
}

func (s BiasSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type FrequencyResult struct {
	Suspicious bool   `json:"suspicious"`
	Reason     string `json:"reason,omitempty"`
	// Count is the number of votes in the whole window.
	Count int64 `json:"count"`
}

type BiasResult struct {
	Biased bool    `json:"biased"`
	Ratio  float64 `json:"ratio"`
	Chosen int64   `json:"chosen"`
	Total  int64   `json:"total"`
}

// CoordinatedVoter is a voter who chose the same candidate more than once
// inside the coordination window.
type CoordinatedVoter struct {
	VoterID        string `json:"voterId"`
	Username       string `json:"username"`
	Votes          int    `json:"votes"`
	AccountAgeDays *int   `json:"accountAgeDays"`
}

type CoordinationResult struct {
	Coordinated bool               `json:"coordinated"`
	Users       int                `json:"users"`
	Votes       int                `json:"votes"`
	Suspicious  []CoordinatedVoter `json:"suspicious"`
}

type RapidResult struct {
	Rapid bool `json:"rapid"`
	// Intervals are the gaps between consecutive votes in seconds, newest first.
	Intervals   []float64 `json:"intervals,omitempty"`
	AvgInterval float64   `json:"avgInterval"`
}

// Factors is the breakdown behind a trust score.
type Factors struct {
	AccountAgeDays      *int         `json:"accountAgeDays"`
	ExternalAgeDays     *int         `json:"externalAgeDays"`
	SuspiciousFrequency bool         `json:"suspiciousFrequency"`
	FrequencyReason     string       `json:"frequencyReason,omitempty"`
	RecentVotes         int64        `json:"recentVotes"`
	RapidFire           bool         `json:"rapidFire"`
	AvgIntervalSeconds  float64      `json:"avgIntervalSeconds"`
	TotalVotes          int64        `json:"totalVotes"`
	MaxBiasRatio        float64      `json:"maxBiasRatio"`
	MostBiasedCandidate string       `json:"mostBiasedCandidate,omitempty"`
	BiasSeverity        BiasSeverity `json:"biasSeverity"`
}

// Score is a trust score from 0 (untrusted) to 100.
type Score struct {
	Value   int     `json:"score"`
	Factors Factors `json:"factors"`
}

// Decision is the admission verdict for one vote.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reason  string   `json:"reason"`
	Score   int      `json:"score"`
	Factors *Factors `json:"factors,omitempty"`
}

// Denial is one refused vote kept for offline review.
type Denial struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	VoterID   string         `gorm:"size:64;index" json:"voterId"`
	SessionID string         `gorm:"size:36" json:"sessionId,omitempty"`
	Reason    string         `gorm:"size:255" json:"reason"`
	Score     int            `json:"score"`
	Factors   datatypes.JSON `json:"factors"`
	DeniedAt  time.Time      `gorm:"index" json:"deniedAt"`
}

func (Denial) TableName() string { return "integrity_denials" }

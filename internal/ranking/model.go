package ranking

import (
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
)

// Tier is a coarse bucket derived from leaderboard position.
type Tier string

const (
	TierTop    Tier = "top"
	TierSecond Tier = "second"
	TierThird  Tier = "third"
	TierNone   Tier = ""
)

// TierFor maps a 1-based rank to its tier.
func TierFor(rank int) Tier {
	switch {
	case rank >= 1 && rank <= 2:
		return TierTop
	case rank >= 3 && rank <= 4:
		return TierSecond
	case rank >= 5 && rank <= 7:
		return TierThird
	}
	return TierNone
}

// WinRate is wins/matches as a truncated integer percentage, 0 without matches.
func WinRate(wins, matches int) int {
	if matches <= 0 {
		return 0
	}
	return wins * 100 / matches
}

// Entry is one leaderboard row.
type Entry struct {
	Rank        int                `json:"rank"`
	CandidateID string             `json:"id"`
	Name        string             `json:"name"`
	Category    candidate.Category `json:"category"`
	URL         string             `json:"url,omitempty"`
	Open        bool               `json:"open"`
	// Rating is truncated for display; Personal rows carry none.
	Rating    int     `json:"rating,omitempty"`
	RawRating float64 `json:"-"`
	WinRate   int     `json:"winRate"`
	Wins      int     `json:"wins"`
	Matches   int     `json:"matches"`
	Tier      Tier    `json:"tier,omitempty"`
}

// DayCount is the number of votes on one UTC day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Stats aggregates counts for the administrative surface.
type Stats struct {
	Votes       map[candidate.Category]int64 `json:"votes"`
	Candidates  map[candidate.Category]int64 `json:"candidates"`
	TotalVotes  int64                        `json:"totalVotes"`
	Voters      int64                        `json:"voters"`
	DailyVotes  []DayCount                   `json:"dailyVotes"`
	GeneratedAt time.Time                    `json:"generatedAt"`
}

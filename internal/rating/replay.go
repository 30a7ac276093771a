package rating

import (
	"context"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"gorm.io/gorm"
)

const replayBatchSize = 1000

// Standing is a candidate's state derived from the ledger.
type Standing struct {
	Rating  float64 `json:"rating"`
	Wins    int     `json:"wins"`
	Matches int     `json:"matches"`
}

// historyKey identifies the history row written for one side of a vote.
type historyKey struct {
	voteID      uint
	candidateID string
}

// replay walks the category's votes in id order starting from
// DefaultRating. visit, when set, sees every vote with the post-vote ratings.
func (e *Engine) replay(ctx context.Context, category candidate.Category, visit func(v Vote, winner, loser float64)) (map[string]Standing, int, error) {
	db := e.db.WithContext(ctx)

	var ids []string
	if err := db.Model(&candidate.Candidate{}).Where("category = ?", category).Pluck("id", &ids).Error; err != nil {
		return nil, 0, apperr.Storage(err, "list %s candidates", category)
	}
	standings := make(map[string]Standing, len(ids))
	for _, id := range ids {
		standings[id] = Standing{Rating: candidate.DefaultRating}
	}

	total := 0
	var batch []Vote
	res := db.Where("category = ?", category).FindInBatches(&batch, replayBatchSize, func(_ *gorm.DB, _ int) error {
		for _, v := range batch {
			w, ok := standings[v.WinnerID]
			if !ok {
				w = Standing{Rating: candidate.DefaultRating}
			}
			l, ok := standings[v.LoserID]
			if !ok {
				l = Standing{Rating: candidate.DefaultRating}
			}
			w.Rating, l.Rating = CalculateElo(w.Rating, l.Rating)
			w.Wins++
			w.Matches++
			l.Matches++
			standings[v.WinnerID] = w
			standings[v.LoserID] = l
			if visit != nil {
				visit(v, w.Rating, l.Rating)
			}
		}
		total += len(batch)
		return nil
	})
	if res.Error != nil {
		return nil, 0, apperr.Storage(res.Error, "replay %s votes", category)
	}
	return standings, total, nil
}

// Replay recomputes every candidate's standing in category from the ledger.
func (e *Engine) Replay(ctx context.Context, category candidate.Category) (map[string]Standing, error) {
	standings, _, err := e.replay(ctx, category, nil)
	return standings, err
}

// Drift describes a candidate whose stored state differs from the replay.
type Drift struct {
	CandidateID string   `json:"candidateId"`
	Stored      Standing `json:"stored"`
	Replayed    Standing `json:"replayed"`
}

// LedgerReport is the outcome of VerifyLedger.
type LedgerReport struct {
	Category          candidate.Category `json:"category"`
	Votes             int                `json:"votes"`
	Drifts            []Drift            `json:"drifts"`
	HistoryMismatches int                `json:"historyMismatches"`
	MissingHistory    int                `json:"missingHistory"`
}

// Consistent reports whether stored state matches the replay exactly.
func (r *LedgerReport) Consistent() bool {
	return len(r.Drifts) == 0 && r.HistoryMismatches == 0 && r.MissingHistory == 0
}

// VerifyLedger replays category and compares the result with the stored
// candidates and every vote-linked history row. It never writes.
func (e *Engine) VerifyLedger(ctx context.Context, category candidate.Category) (*LedgerReport, error) {
	var entries []HistoryEntry
	if err := e.db.WithContext(ctx).
		Where("category = ? AND vote_id IS NOT NULL", category).
		Find(&entries).Error; err != nil {
		return nil, apperr.Storage(err, "load %s history", category)
	}
	history := make(map[historyKey]float64, len(entries))
	for _, h := range entries {
		history[historyKey{voteID: *h.VoteID, candidateID: h.CandidateID}] = h.Rating
	}

	report := &LedgerReport{Category: category, Drifts: []Drift{}}
	check := func(voteID uint, candidateID string, want float64) {
		got, ok := history[historyKey{voteID: voteID, candidateID: candidateID}]
		switch {
		case !ok:
			report.MissingHistory++
		case got != want:
			report.HistoryMismatches++
		}
	}
	standings, total, err := e.replay(ctx, category, func(v Vote, winner, loser float64) {
		check(v.ID, v.WinnerID, winner)
		check(v.ID, v.LoserID, loser)
	})
	if err != nil {
		return nil, err
	}
	report.Votes = total

	var stored []candidate.Candidate
	if err := e.db.WithContext(ctx).Where("category = ?", category).Order("id asc").Find(&stored).Error; err != nil {
		return nil, apperr.Storage(err, "load %s candidates", category)
	}
	for _, c := range stored {
		want := standings[c.ID]
		got := Standing{Rating: c.Rating, Wins: c.WinCount, Matches: c.MatchCount}
		if got != want {
			report.Drifts = append(report.Drifts, Drift{CandidateID: c.ID, Stored: got, Replayed: want})
		}
	}
	return report, nil
}

package rating

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/database"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"gorm.io/gorm"
)

// Engine records vote outcomes and keeps ratings, counters and history in
// step with the vote ledger.
type Engine struct {
	db      *gorm.DB
	log     *logger.Logger
	metrics *metrics.Metrics
	locks   *keyedLocks
	now     func() time.Time
}

func NewEngine(db *gorm.DB, log *logger.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      db,
		log:     log,
		metrics: m,
		locks:   newKeyedLocks(),
		now:     time.Now,
	}
}

// Models lists the tables owned by the engine, for migrations.
func Models() []any {
	return []any{&Vote{}, &HistoryEntry{}}
}

func validate(o Outcome) error {
	switch {
	case o.WinnerID == "" || o.LoserID == "":
		return apperr.InvalidInput("winner and loser ids are required")
	case o.WinnerID == o.LoserID:
		return apperr.InvalidInput("winner and loser must differ")
	case !o.Category.Valid():
		return apperr.InvalidInput("unknown category %q", o.Category)
	case strings.TrimSpace(o.Input) == "":
		return apperr.InvalidInput("input text is required")
	case utf8.RuneCountInString(o.Input) > MaxInputRunes:
		return apperr.InvalidInput("input text exceeds %d characters", MaxInputRunes)
	case o.VoterID != nil && *o.VoterID == "":
		return apperr.InvalidInput("voter id must be nil or non-empty")
	}
	return nil
}

// RecordOutcome appends a vote and applies its Elo update in one
// transaction: the vote row, both candidates' ratings and counters, and two
// history rows either all commit or none do. Votes touching the same
// candidate are serialised, so each one sees its predecessor's rating.
//
// The caller's cancellation is ignored once validation passes; a vote either
// commits fully or fails fully.
func (e *Engine) RecordOutcome(ctx context.Context, o Outcome) (*Vote, error) {
	if err := validate(o); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(o.WinnerID, o.LoserID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	var vote Vote
	var newWinner, newLoser float64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found []candidate.Candidate
		if err := database.ForUpdate(tx).
			Where("id IN ? AND category = ?", []string{o.WinnerID, o.LoserID}, o.Category).
			Find(&found).Error; err != nil {
			return err
		}
		var winner, loser *candidate.Candidate
		for i := range found {
			switch found[i].ID {
			case o.WinnerID:
				winner = &found[i]
			case o.LoserID:
				loser = &found[i]
			}
		}
		if winner == nil {
			return apperr.NotFound("candidate %q not found in %s", o.WinnerID, o.Category)
		}
		if loser == nil {
			return apperr.NotFound("candidate %q not found in %s", o.LoserID, o.Category)
		}

		newWinner, newLoser = CalculateElo(winner.Rating, loser.Rating)
		now := e.now().UTC()

		vote = Vote{
			VoterID:  o.VoterID,
			Input:    o.Input,
			VotedAt:  now,
			WinnerID: o.WinnerID,
			LoserID:  o.LoserID,
			Category: o.Category,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}

		if err := tx.Model(&candidate.Candidate{}).Where("id = ?", o.WinnerID).Updates(map[string]any{
			"rating":      newWinner,
			"win_count":   gorm.Expr("win_count + ?", 1),
			"match_count": gorm.Expr("match_count + ?", 1),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&candidate.Candidate{}).Where("id = ?", o.LoserID).Updates(map[string]any{
			"rating":      newLoser,
			"match_count": gorm.Expr("match_count + ?", 1),
		}).Error; err != nil {
			return err
		}

		history := []HistoryEntry{
			{CandidateID: o.WinnerID, Category: o.Category, Rating: newWinner, RecordedAt: now, VoteID: &vote.ID},
			{CandidateID: o.LoserID, Category: o.Category, Rating: newLoser, RecordedAt: now, VoteID: &vote.ID},
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		e.log.Error("vote transaction rolled back",
			"winner", o.WinnerID, "loser", o.LoserID, "category", o.Category, "error", err)
		return nil, apperr.Storage(err, "record outcome")
	}

	e.metrics.VoteRecorded(string(o.Category))
	e.log.Debug("vote recorded",
		"vote", vote.ID,
		"winner", o.WinnerID, "winnerRating", newWinner,
		"loser", o.LoserID, "loserRating", newLoser)
	return &vote, nil
}

package integrity

import (
	"context"
	"database/sql"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"gorm.io/gorm"
)

// Matchup is the pair of candidates of one vote.
type Matchup struct {
	WinnerID string
	LoserID  string
}

// Ledger is the read access to votes and voters the guard needs, plus the
// denial log.
type Ledger interface {
	CountVotes(ctx context.Context, voterID string) (int64, error)
	CountVotesSince(ctx context.Context, voterID string, since time.Time) (int64, error)
	CountChosen(ctx context.Context, voterID, candidateID string) (int64, error)
	// RecentVoteTimes returns up to limit vote times, newest first.
	RecentVoteTimes(ctx context.Context, voterID string, limit int) ([]time.Time, error)
	Matchups(ctx context.Context, voterID string) ([]Matchup, error)
	// Choosers returns the voter id of every vote choosing candidateID since
	// the given time; anonymous votes yield "".
	Choosers(ctx context.Context, candidateID string, since time.Time) ([]string, error)
	Voter(ctx context.Context, voterID string) (*voter.Voter, error)

	RecordDenial(ctx context.Context, d *Denial) error
	Denials(ctx context.Context, limit int) ([]Denial, error)
}

// GormLedger reads the vote ledger written by the rating engine.
type GormLedger struct {
	db     *gorm.DB
	voters *voter.Repository
}

func NewGormLedger(db *gorm.DB, voters *voter.Repository) *GormLedger {
	return &GormLedger{db: db, voters: voters}
}

func (l *GormLedger) votes(ctx context.Context) *gorm.DB {
	return l.db.WithContext(ctx).Model(&rating.Vote{})
}

func (l *GormLedger) CountVotes(ctx context.Context, voterID string) (int64, error) {
	var n int64
	if err := l.votes(ctx).Where("voter_id = ?", voterID).Count(&n).Error; err != nil {
		return 0, apperr.Storage(err, "count votes of %q", voterID)
	}
	return n, nil
}

func (l *GormLedger) CountVotesSince(ctx context.Context, voterID string, since time.Time) (int64, error) {
	var n int64
	if err := l.votes(ctx).Where("voter_id = ? AND voted_at >= ?", voterID, since.UTC()).Count(&n).Error; err != nil {
		return 0, apperr.Storage(err, "count recent votes of %q", voterID)
	}
	return n, nil
}

func (l *GormLedger) CountChosen(ctx context.Context, voterID, candidateID string) (int64, error) {
	var n int64
	if err := l.votes(ctx).Where("voter_id = ? AND winner_id = ?", voterID, candidateID).Count(&n).Error; err != nil {
		return 0, apperr.Storage(err, "count choices of %q", voterID)
	}
	return n, nil
}

func (l *GormLedger) RecentVoteTimes(ctx context.Context, voterID string, limit int) ([]time.Time, error) {
	var times []time.Time
	if err := l.votes(ctx).Where("voter_id = ?", voterID).
		Order("voted_at desc, id desc").
		Limit(limit).
		Pluck("voted_at", &times).Error; err != nil {
		return nil, apperr.Storage(err, "load vote times of %q", voterID)
	}
	return times, nil
}

func (l *GormLedger) Matchups(ctx context.Context, voterID string) ([]Matchup, error) {
	var out []Matchup
	if err := l.votes(ctx).Select("winner_id", "loser_id").Where("voter_id = ?", voterID).
		Scan(&out).Error; err != nil {
		return nil, apperr.Storage(err, "load matchups of %q", voterID)
	}
	return out, nil
}

func (l *GormLedger) Choosers(ctx context.Context, candidateID string, since time.Time) ([]string, error) {
	var ids []sql.NullString
	if err := l.votes(ctx).Where("winner_id = ? AND voted_at >= ?", candidateID, since.UTC()).
		Pluck("voter_id", &ids).Error; err != nil {
		return nil, apperr.Storage(err, "load voters choosing %q", candidateID)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String
	}
	return out, nil
}

func (l *GormLedger) Voter(ctx context.Context, voterID string) (*voter.Voter, error) {
	return l.voters.Get(ctx, voterID)
}

func (l *GormLedger) RecordDenial(ctx context.Context, d *Denial) error {
	if err := l.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.Storage(err, "record denial for %q", d.VoterID)
	}
	return nil
}

// Denials returns the newest denials first. limit is clamped to 1..500.
func (l *GormLedger) Denials(ctx context.Context, limit int) ([]Denial, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Denial
	if err := l.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperr.Storage(err, "list denials")
	}
	return out, nil
}

package voter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"gorm.io/gorm"
)

// votesTable is the ledger table the rating engine writes.
const votesTable = "votes"

// Repository stores voter accounts.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get returns one voter, or NotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Voter, error) {
	var v Voter
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("voter %q not found", id)
	}
	if err != nil {
		return nil, apperr.Storage(err, "load voter %q", id)
	}
	return &v, nil
}

// Register creates the voter on first sign-in and refreshes the username
// and external creation date afterwards. JoinedAt is never moved.
func (r *Repository) Register(ctx context.Context, reg Registration) (*Voter, error) {
	reg.ID = strings.TrimSpace(reg.ID)
	if reg.ID == "" || reg.Username == "" {
		return nil, apperr.InvalidInput("voter id and username are required")
	}

	var out Voter
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&out, "id = ?", reg.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			joined := r.now().UTC()
			out = Voter{
				ID:                reg.ID,
				Username:          reg.Username,
				JoinedAt:          &joined,
				ExternalCreatedAt: utcPtr(reg.ExternalCreatedAt),
				ShowInLeaderboard: true,
			}
			return tx.Create(&out).Error
		}
		if err != nil {
			return err
		}
		updates := map[string]any{"username": reg.Username}
		if reg.ExternalCreatedAt != nil {
			updates["external_created_at"] = reg.ExternalCreatedAt.UTC()
		}
		if err := tx.Model(&out).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&out, "id = ?", reg.ID).Error
	})
	if err != nil {
		return nil, apperr.Storage(err, "register voter %q", reg.ID)
	}
	return &out, nil
}

// SetVisibility stores whether the voter appears in the public ranking.
func (r *Repository) SetVisibility(ctx context.Context, id string, show bool) error {
	res := r.db.WithContext(ctx).Model(&Voter{}).Where("id = ?", id).Update("show_in_leaderboard", show)
	if res.Error != nil {
		return apperr.Storage(res.Error, "update voter %q", id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("voter %q not found", id)
	}
	return nil
}

// Count returns the number of registered voters.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Voter{}).Count(&n).Error; err != nil {
		return 0, apperr.Storage(err, "count voters")
	}
	return n, nil
}

// Top ranks visible voters by number of recorded votes.
func (r *Repository) Top(ctx context.Context, limit int) ([]Ranked, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var rows []Ranked
	err := r.db.WithContext(ctx).
		Table(votesTable+" AS v").
		Select("voters.id AS id, voters.username AS username, count(v.id) AS vote_count").
		Joins("JOIN voters ON voters.id = v.voter_id").
		Where("voters.show_in_leaderboard = ?", true).
		Group("voters.id, voters.username").
		Order("vote_count desc, voters.username asc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Storage(err, "rank voters")
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

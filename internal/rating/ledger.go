package rating

import (
	"context"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
)

// Page is one page of the vote ledger, newest first.
type Page struct {
	Votes []Vote `json:"votes"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Total int64  `json:"total"`
}

// ListVotes pages through the ledger for administrative review.
func (e *Engine) ListVotes(ctx context.Context, page, size int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	db := e.db.WithContext(ctx)

	out := &Page{Page: page, Size: size, Votes: []Vote{}}
	if err := db.Model(&Vote{}).Count(&out.Total).Error; err != nil {
		return nil, apperr.Storage(err, "count votes")
	}
	if err := db.Order("id desc").Offset((page - 1) * size).Limit(size).Find(&out.Votes).Error; err != nil {
		return nil, apperr.Storage(err, "list votes")
	}
	return out, nil
}

// CountByCategory returns the number of votes per category.
func (e *Engine) CountByCategory(ctx context.Context) (map[candidate.Category]int64, error) {
	var rows []struct {
		Category candidate.Category
		Count    int64
	}
	if err := e.db.WithContext(ctx).Model(&Vote{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Storage(err, "count votes")
	}
	counts := make(map[candidate.Category]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

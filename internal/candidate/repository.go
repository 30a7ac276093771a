package candidate

import (
	"context"
	"errors"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"gorm.io/gorm"
)

// Repository reads and edits candidate metadata.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns one candidate, or NotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Candidate, error) {
	var c Candidate
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("candidate %q not found", id)
	}
	if err != nil {
		return nil, apperr.Storage(err, "load candidate %q", id)
	}
	return &c, nil
}

// ListByCategory returns every candidate of a category, active or not,
// ordered by id.
func (r *Repository) ListByCategory(ctx context.Context, category Category) ([]Candidate, error) {
	var list []Candidate
	if err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, apperr.Storage(err, "list %s candidates", category)
	}
	return list, nil
}

// ListActive returns the candidates eligible for new comparisons.
func (r *Repository) ListActive(ctx context.Context, category Category) ([]Candidate, error) {
	var list []Candidate
	if err := r.db.WithContext(ctx).
		Where("category = ? AND active = ?", category, true).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, apperr.Storage(err, "list active %s candidates", category)
	}
	return list, nil
}

// Names maps ids to display names for the given ids.
func (r *Repository) Names(ctx context.Context, ids ...string) (map[string]string, error) {
	var list []Candidate
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, apperr.Storage(err, "load candidate names")
	}
	names := make(map[string]string, len(list))
	for _, c := range list {
		names[c.ID] = c.Name
	}
	return names, nil
}

// CountByCategory returns the number of candidates per category.
func (r *Repository) CountByCategory(ctx context.Context) (map[Category]int64, error) {
	var rows []struct {
		Category Category
		Count    int64
	}
	if err := r.db.WithContext(ctx).Model(&Candidate{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Storage(err, "count candidates")
	}
	counts := make(map[Category]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

// Patch is an administrative metadata edit. Nil fields are left unchanged.
type Patch struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
	Open   *bool   `json:"open"`
	URL    *string `json:"url"`
}

func (p Patch) updates() map[string]any {
	m := make(map[string]any, 4)
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Active != nil {
		m["active"] = *p.Active
	}
	if p.Open != nil {
		m["open"] = *p.Open
	}
	if p.URL != nil {
		m["url"] = *p.URL
	}
	return m
}

// Update applies an administrative edit. Rating state cannot be edited.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (*Candidate, error) {
	if patch.Name != nil && *patch.Name == "" {
		return nil, apperr.InvalidInput("candidate name must not be empty")
	}
	updates := patch.updates()
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	res := r.db.WithContext(ctx).Model(&Candidate{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, apperr.Storage(res.Error, "update candidate %q", id)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("candidate %q not found", id)
	}
	return r.Get(ctx, id)
}

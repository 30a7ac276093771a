package candidate

import (
	"context"
	"math/rand/v2"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/pkg/tree"
)

// Weight favours candidates with fewer matches so new entries catch up.
func Weight(matchCount int) float64 {
	return 1.0 / (float64(matchCount) + 5.0)
}

// Selector draws comparison pairs from the active pool.
type Selector struct {
	repo *Repository
	// float returns a value in [0, 1).
	float func() float64
}

func NewSelector(repo *Repository) *Selector {
	return &Selector{repo: repo, float: rand.Float64}
}

// Pick returns two distinct active candidates of category in random A/B
// order. Less played candidates are drawn more often.
func (s *Selector) Pick(ctx context.Context, category Category) ([2]Candidate, error) {
	var pair [2]Candidate
	if !category.Valid() {
		return pair, apperr.InvalidInput("unknown category %q", category)
	}

	pool, err := s.repo.ListActive(ctx, category)
	if err != nil {
		return pair, err
	}
	if len(pool) < 2 {
		return pair, apperr.New(apperr.KindInsufficientCandidatePool,
			"category %s has %d active candidates, need 2", category, len(pool))
	}

	weights := make([]float64, len(pool))
	for i, c := range pool {
		weights[i] = Weight(c.MatchCount)
	}
	st, err := tree.FromWeights(weights)
	if err != nil {
		return pair, apperr.Wrap(apperr.KindInternal, err, "build selection tree")
	}

	for i := range pair {
		idx, err := st.Find(s.float() * st.TotalSum())
		if err != nil {
			return pair, apperr.Wrap(apperr.KindInternal, err, "draw candidate")
		}
		pair[i] = pool[idx]
		if err := st.Update(idx, 0); err != nil {
			return pair, apperr.Wrap(apperr.KindInternal, err, "draw candidate")
		}
	}

	if s.float() < 0.5 {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return pair, nil
}

// Package ranking answers leaderboard queries from the rating state and the
// vote ledger. It only reads.
package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"gorm.io/gorm"
)

// CategoryCounter counts rows per category. The vote ledger and the
// candidate repository both satisfy it.
type CategoryCounter interface {
	CountByCategory(ctx context.Context) (map[candidate.Category]int64, error)
}

type VoterCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Counters feed CategoryStats.
type Counters struct {
	Votes      CategoryCounter
	Candidates CategoryCounter
	Voters     VoterCounter
}

// Engine runs leaderboard queries.
type Engine struct {
	db       *gorm.DB
	counters Counters
	now      func() time.Time
}

func NewEngine(db *gorm.DB, counters Counters) *Engine {
	return &Engine{db: db, counters: counters, now: time.Now}
}

func (e *Engine) candidates(ctx context.Context, category candidate.Category) ([]candidate.Candidate, error) {
	var list []candidate.Candidate
	if !category.Valid() {
		return list, nil
	}
	if err := e.db.WithContext(ctx).Where("category = ?", category).Find(&list).Error; err != nil {
		return nil, apperr.Storage(err, "load %s candidates", category)
	}
	return list, nil
}

func entryFor(c candidate.Candidate) Entry {
	return Entry{
		CandidateID: c.ID,
		Name:        c.Name,
		Category:    c.Category,
		URL:         c.URL,
		Open:        c.Open,
	}
}

// rankByRating sorts by rating descending, ties by id, and assigns rank and tier.
func rankByRating(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RawRating != entries[j].RawRating {
			return entries[i].RawRating > entries[j].RawRating
		}
		return entries[i].CandidateID < entries[j].CandidateID
	})
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Tier = TierFor(i + 1)
	}
}

// CurrentLeaderboard lists every candidate of category by current rating.
// Unknown categories yield an empty list.
func (e *Engine) CurrentLeaderboard(ctx context.Context, category candidate.Category) ([]Entry, error) {
	list, err := e.candidates(ctx, category)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list))
	for _, c := range list {
		en := entryFor(c)
		en.RawRating = c.Rating
		en.Rating = rating.DisplayRating(c.Rating)
		en.Wins = c.WinCount
		en.Matches = c.MatchCount
		en.WinRate = WinRate(c.WinCount, c.MatchCount)
		entries = append(entries, en)
	}
	rankByRating(entries)
	return entries, nil
}

// PersonalLeaderboard ranks candidates by win rate within voterID's own
// votes. Candidates the voter never saw are left out and rows carry no tier.
func (e *Engine) PersonalLeaderboard(ctx context.Context, voterID string, category candidate.Category) ([]Entry, error) {
	list, err := e.candidates(ctx, category)
	if err != nil || voterID == "" {
		return []Entry{}, err
	}

	var votes []rating.Vote
	if err := e.db.WithContext(ctx).
		Select("winner_id", "loser_id").
		Where("voter_id = ? AND category = ?", voterID, category).
		Find(&votes).Error; err != nil {
		return nil, apperr.Storage(err, "load votes of %q", voterID)
	}
	wins := make(map[string]int)
	matches := make(map[string]int)
	for _, v := range votes {
		wins[v.WinnerID]++
		matches[v.WinnerID]++
		matches[v.LoserID]++
	}

	entries := make([]Entry, 0, len(matches))
	for _, c := range list {
		m := matches[c.ID]
		if m == 0 {
			continue
		}
		en := entryFor(c)
		en.Wins = wins[c.ID]
		en.Matches = m
		en.WinRate = WinRate(en.Wins, m)
		entries = append(entries, en)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		// compare wins/matches exactly by cross multiplication
		if l, r := a.Wins*b.Matches, b.Wins*a.Matches; l != r {
			return l > r
		}
		if a.Matches != b.Matches {
			return a.Matches > b.Matches
		}
		return a.CandidateID < b.CandidateID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// HistoricalLeaderboard rebuilds the leaderboard as it stood at asOf: each
// candidate's latest history entry at or before asOf, and counts from votes
// cast at or before asOf. Candidates without history by then are skipped.
func (e *Engine) HistoricalLeaderboard(ctx context.Context, category candidate.Category, asOf time.Time) ([]Entry, error) {
	list, err := e.candidates(ctx, category)
	if err != nil {
		return nil, err
	}
	asOf = asOf.UTC()
	db := e.db.WithContext(ctx)

	wins, err := e.countBy(ctx, "winner_id", category, asOf)
	if err != nil {
		return nil, err
	}
	losses, err := e.countBy(ctx, "loser_id", category, asOf)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(list))
	for _, c := range list {
		var h rating.HistoryEntry
		err := db.Where("candidate_id = ? AND category = ? AND recorded_at <= ?", c.ID, category, asOf).
			Order("recorded_at desc, id desc").
			First(&h).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Storage(err, "load history of %q", c.ID)
		}

		en := entryFor(c)
		en.RawRating = h.Rating
		en.Rating = rating.DisplayRating(h.Rating)
		en.Wins = wins[c.ID]
		en.Matches = wins[c.ID] + losses[c.ID]
		en.WinRate = WinRate(en.Wins, en.Matches)
		entries = append(entries, en)
	}
	rankByRating(entries)
	return entries, nil
}

func (e *Engine) countBy(ctx context.Context, column string, category candidate.Category, asOf time.Time) (map[string]int, error) {
	var rows []struct {
		ID    string
		Count int
	}
	if err := e.db.WithContext(ctx).Model(&rating.Vote{}).
		Select(column+" AS id, count(*) AS count").
		Where("category = ? AND voted_at <= ?", category, asOf).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, apperr.Storage(err, "count votes by %s", column)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

// KeyHistoricalDates returns the first of every month (UTC midnight) from
// the month of the category's first vote through its last vote, followed by
// the last vote's timestamp unless that falls on the first of a month.
func (e *Engine) KeyHistoricalDates(ctx context.Context, category candidate.Category) ([]time.Time, error) {
	dates := []time.Time{}
	if !category.Valid() {
		return dates, nil
	}

	var first, last rating.Vote
	db := e.db.WithContext(ctx).Where("category = ?", category)
	err := db.Order("voted_at asc, id asc").First(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dates, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "load first %s vote", category)
	}
	if err := e.db.WithContext(ctx).Where("category = ?", category).
		Order("voted_at desc, id desc").First(&last).Error; err != nil {
		return nil, apperr.Storage(err, "load last %s vote", category)
	}

	start, end := first.VotedAt.UTC(), last.VotedAt.UTC()
	for d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !d.After(end); d = d.AddDate(0, 1, 0) {
		dates = append(dates, d)
	}
	if end.Day() != 1 {
		dates = append(dates, end)
	}
	return dates, nil
}

// CategoryStats aggregates vote, candidate and voter counts plus daily vote
// counts for the last 30 days.
func (e *Engine) CategoryStats(ctx context.Context) (*Stats, error) {
	db := e.db.WithContext(ctx)
	now := e.now().UTC()
	stats := &Stats{
		Votes:       make(map[candidate.Category]int64),
		Candidates:  make(map[candidate.Category]int64),
		DailyVotes:  []DayCount{},
		GeneratedAt: now,
	}

	votes, err := e.counters.Votes.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	for c, n := range votes {
		stats.Votes[c] = n
		stats.TotalVotes += n
	}
	cands, err := e.counters.Candidates.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	for c, n := range cands {
		stats.Candidates[c] = n
	}
	if stats.Voters, err = e.counters.Voters.Count(ctx); err != nil {
		return nil, err
	}

	var times []time.Time
	since := now.AddDate(0, 0, -30)
	if err := db.Model(&rating.Vote{}).Where("voted_at >= ?", since).Order("voted_at asc").Pluck("voted_at", &times).Error; err != nil {
		return nil, apperr.Storage(err, "load recent votes")
	}
	for _, t := range times {
		day := t.UTC().Format(time.DateOnly)
		if n := len(stats.DailyVotes); n > 0 && stats.DailyVotes[n-1].Day == day {
			stats.DailyVotes[n-1].Count++
			continue
		}
		stats.DailyVotes = append(stats.DailyVotes, DayCount{Day: day, Count: 1})
	}
	return stats, nil
}

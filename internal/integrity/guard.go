// Package integrity decides whether a vote can be trusted. Every check reads
// the vote ledger; none of them ever changes an already recorded vote.
package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"gorm.io/datatypes"
)

const (
	DefaultFrequencyWindow = 24 * time.Hour
	DefaultMaxPerHour      = 30

	DefaultBiasMinVotes  = 5
	DefaultBiasThreshold = 0.8

	DefaultCoordinationWindow   = 6 * time.Hour
	DefaultCoordinationMinUsers = 3
	DefaultCoordinationMinVotes = 10

	// MinAdmissionScore is the lowest trust score still allowed to vote.
	MinAdmissionScore = 20

	burstWindow   = 3 * time.Hour
	burstMaxVotes = 100

	rapidSample      = 50
	rapidRunInterval = 5.0
	rapidRunLength   = 10

	biasMinAppearances = 5
)

// Guard runs the integrity checks.
type Guard struct {
	ledger Ledger
	log    *logger.Logger
	now    func() time.Time
}

func NewGuard(ledger Ledger, log *logger.Logger) *Guard {
	return &Guard{ledger: ledger, log: log, now: time.Now}
}

func ageDays(now time.Time, since *time.Time) *int {
	if since == nil {
		return nil
	}
	d := int(now.Sub(*since).Hours() / 24)
	return &d
}

// VotingFrequency flags a voter who cast more than maxPerHour votes per hour
// over window, or, for windows of at least three hours, more than 100 votes
// in the trailing three hours.
func (g *Guard) VotingFrequency(ctx context.Context, voterID string, window time.Duration, maxPerHour int) (FrequencyResult, error) {
	if voterID == "" {
		return FrequencyResult{}, nil
	}
	now := g.now()
	count, err := g.ledger.CountVotesSince(ctx, voterID, now.Add(-window))
	if err != nil {
		return FrequencyResult{}, err
	}
	res := FrequencyResult{Count: count}

	hours := window.Hours()
	limit := int64(float64(maxPerHour) * hours)
	if count > limit {
		res.Suspicious = true
		res.Reason = fmt.Sprintf("too many votes: %d in %g hours (max %d)", count, hours, limit)
		return res, nil
	}

	if window >= burstWindow {
		burst, err := g.ledger.CountVotesSince(ctx, voterID, now.Add(-burstWindow))
		if err != nil {
			return FrequencyResult{}, err
		}
		if burst > burstMaxVotes {
			res.Suspicious = true
			res.Reason = fmt.Sprintf("excessive voting: %d votes in 3 hours", burst)
		}
	}
	return res, nil
}

// Bias reports the share of the voter's votes that chose candidateID. It is
// only flagged once the voter has at least minVotes votes.
func (g *Guard) Bias(ctx context.Context, voterID, candidateID string, minVotes int, threshold float64) (BiasResult, error) {
	if voterID == "" {
		return BiasResult{}, nil
	}
	total, err := g.ledger.CountVotes(ctx, voterID)
	if err != nil {
		return BiasResult{}, err
	}
	if total < int64(minVotes) || total == 0 {
		return BiasResult{Total: total}, nil
	}
	chosen, err := g.ledger.CountChosen(ctx, voterID, candidateID)
	if err != nil {
		return BiasResult{}, err
	}
	ratio := float64(chosen) / float64(total)
	return BiasResult{
		Biased: ratio >= threshold,
		Ratio:  ratio,
		Chosen: chosen,
		Total:  total,
	}, nil
}

// Coordination looks at the votes choosing candidateID within window and
// flags a campaign when there are at least minVotes of them from at least
// minUsers distinct voters. Voters who chose it more than once are listed.
func (g *Guard) Coordination(ctx context.Context, candidateID string, window time.Duration, minUsers, minVotes int) (CoordinationResult, error) {
	now := g.now()
	choosers, err := g.ledger.Choosers(ctx, candidateID, now.Add(-window))
	if err != nil {
		return CoordinationResult{}, err
	}
	res := CoordinationResult{Votes: len(choosers), Suspicious: []CoordinatedVoter{}}
	if len(choosers) < minVotes {
		return res, nil
	}

	perVoter := make(map[string]int)
	for _, id := range choosers {
		if id != "" {
			perVoter[id]++
		}
	}
	res.Users = len(perVoter)
	if res.Users < minUsers {
		return res, nil
	}
	res.Coordinated = true

	for id, n := range perVoter {
		if n <= 1 {
			continue
		}
		v, err := g.ledger.Voter(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return CoordinationResult{}, err
		}
		res.Suspicious = append(res.Suspicious, CoordinatedVoter{
			VoterID:        id,
			Username:       v.Username,
			Votes:          n,
			AccountAgeDays: ageDays(now, v.JoinedAt),
		})
	}
	sort.Slice(res.Suspicious, func(i, j int) bool {
		a, b := res.Suspicious[i], res.Suspicious[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.VoterID < b.VoterID
	})
	return res, nil
}

// RapidFire inspects the voter's last 50 votes for bot-like pacing.
func (g *Guard) RapidFire(ctx context.Context, voterID string) (RapidResult, error) {
	if voterID == "" {
		return RapidResult{}, nil
	}
	times, err := g.ledger.RecentVoteTimes(ctx, voterID, rapidSample)
	if err != nil {
		return RapidResult{}, err
	}
	return classifyIntervals(times), nil
}

// classifyIntervals expects vote times newest first. Fewer than 50 times is
// never rapid.
func classifyIntervals(times []time.Time) RapidResult {
	if len(times) < rapidSample {
		return RapidResult{}
	}

	intervals := make([]float64, len(times)-1)
	var sum float64
	var under1, under3, runs, run int
	for i := range intervals {
		d := times[i].Sub(times[i+1]).Seconds()
		intervals[i] = d
		sum += d
		if d < 1 {
			under1++
		}
		if d < 3 {
			under3++
		}
		if d < rapidRunInterval {
			run++
			continue
		}
		if run >= rapidRunLength {
			runs++
		}
		run = 0
	}
	if run >= rapidRunLength {
		runs++
	}

	n := float64(len(intervals))
	return RapidResult{
		Rapid:       float64(under1)/n > 0.2 || (float64(under3)/n > 0.6 && runs > 0) || runs >= 2,
		Intervals:   intervals,
		AvgInterval: sum / n,
	}
}

// TrustScore starts at 100 and deducts for young accounts, suspicious
// pacing and strong single-candidate preference. Unknown voters are NotFound.
func (g *Guard) TrustScore(ctx context.Context, voterID string) (Score, error) {
	if voterID == "" {
		return Score{}, apperr.InvalidInput("voter id is required")
	}
	v, err := g.ledger.Voter(ctx, voterID)
	if err != nil {
		return Score{}, err
	}
	now := g.now()
	var f Factors
	score := 100

	f.AccountAgeDays = ageDays(now, v.JoinedAt)
	switch age := f.AccountAgeDays; {
	case age == nil:
		score -= 20
	case *age < 45:
		score -= 30
	case *age < 90:
		score -= 15
	case *age < 180:
		score -= 5
	}

	f.ExternalAgeDays = ageDays(now, v.ExternalCreatedAt)
	switch age := f.ExternalAgeDays; {
	case age == nil:
		score -= 15
	case *age < 30:
		score -= 25
	case *age < 90:
		score -= 10
	}

	freq, err := g.VotingFrequency(ctx, voterID, DefaultFrequencyWindow, DefaultMaxPerHour)
	if err != nil {
		return Score{}, err
	}
	f.SuspiciousFrequency = freq.Suspicious
	f.FrequencyReason = freq.Reason
	f.RecentVotes = freq.Count
	if freq.Suspicious {
		score -= 25
	}

	rapid, err := g.RapidFire(ctx, voterID)
	if err != nil {
		return Score{}, err
	}
	f.RapidFire = rapid.Rapid
	f.AvgIntervalSeconds = rapid.AvgInterval
	if rapid.Rapid {
		score -= 20
	}

	if f.TotalVotes, err = g.ledger.CountVotes(ctx, voterID); err != nil {
		return Score{}, err
	}
	if f.AccountAgeDays != nil && *f.AccountAgeDays < 7 && f.TotalVotes > 20 {
		score -= 15
	}

	if f.TotalVotes >= DefaultBiasMinVotes {
		matchups, err := g.ledger.Matchups(ctx, voterID)
		if err != nil {
			return Score{}, err
		}
		f.MaxBiasRatio, f.MostBiasedCandidate = maxBias(matchups)
		f.BiasSeverity = SeverityFor(f.MaxBiasRatio)
		score -= f.BiasSeverity.Penalty()
	}

	return Score{Value: max(score, 0), Factors: f}, nil
}

// maxBias returns the highest chosen/appeared ratio over candidates that
// appeared at least five times. Ties go to the smaller id.
func maxBias(matchups []Matchup) (float64, string) {
	chosen := make(map[string]int)
	appeared := make(map[string]int)
	for _, m := range matchups {
		chosen[m.WinnerID]++
		appeared[m.WinnerID]++
		appeared[m.LoserID]++
	}
	ids := make([]string, 0, len(appeared))
	for id := range appeared {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var best float64
	var bestID string
	for _, id := range ids {
		if appeared[id] < biasMinAppearances {
			continue
		}
		if r := float64(chosen[id]) / float64(appeared[id]); r > best {
			best, bestID = r, id
		}
	}
	return best, bestID
}

// AdmitVote decides whether voterID may vote now. Denials are written to the
// denial log with sessionID for later review. Callers handle anonymous
// voting themselves; an empty voterID is denied here.
func (g *Guard) AdmitVote(ctx context.Context, voterID, sessionID string) (Decision, error) {
	if voterID == "" {
		return g.deny(ctx, voterID, sessionID, Decision{Reason: "not authenticated"})
	}

	s, err := g.TrustScore(ctx, voterID)
	if errors.Is(err, apperr.ErrNotFound) {
		return g.deny(ctx, voterID, sessionID, Decision{Reason: "voter not registered"})
	}
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Score: s.Value, Factors: &s.Factors}
	switch {
	case s.Value < MinAdmissionScore:
		d.Reason = fmt.Sprintf("trust score too low: %d/100", s.Value)
	case s.Factors.SuspiciousFrequency:
		d.Reason = "suspicious voting pattern: " + s.Factors.FrequencyReason
	case s.Factors.RapidFire:
		d.Reason = fmt.Sprintf("voting too rapidly (avg interval %.1fs)", s.Factors.AvgIntervalSeconds)
	default:
		d.Allowed = true
		d.Reason = "vote allowed"
		return d, nil
	}
	return g.deny(ctx, voterID, sessionID, d)
}

func (g *Guard) deny(ctx context.Context, voterID, sessionID string, d Decision) (Decision, error) {
	d.Allowed = false
	g.log.Warn("vote denied", "voter", voterID, "session", sessionID, "reason", d.Reason, "score", d.Score)

	factors := datatypes.JSON("{}")
	if d.Factors != nil {
		raw, err := json.Marshal(d.Factors)
		if err != nil {
			return Decision{}, fmt.Errorf("encode denial factors: %w", err)
		}
		factors = datatypes.JSON(raw)
	}
	denial := &Denial{
		VoterID:   voterID,
		SessionID: sessionID,
		Reason:    d.Reason,
		Score:     d.Score,
		Factors:   factors,
		DeniedAt:  g.now().UTC(),
	}
	if err := g.ledger.RecordDenial(ctx, denial); err != nil {
		// the verdict stands even if it cannot be logged
		g.log.Error("record denial failed", "voter", voterID, "error", err)
	}
	return d, nil
}

// Denials lists the denial log, newest first.
func (g *Guard) Denials(ctx context.Context, limit int) ([]Denial, error) {
	return g.ledger.Denials(ctx, limit)
}

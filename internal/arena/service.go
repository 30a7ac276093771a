// Package arena ties the comparison flow together: pick a pair, generate
// both clips, hold them in a session, gate the vote and record it.
package arena

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/session"
	"github.com/SlpAus/arena-ranking-backend/internal/synthesis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/SlpAus/arena-ranking-backend/internal/arena")

type PairPicker interface {
	Pick(ctx context.Context, category candidate.Category) ([2]candidate.Candidate, error)
}

type PairGenerator interface {
	GeneratePair(ctx context.Context, input string, candidateIDs [2]string) ([2]*synthesis.FileArtifact, error)
}

type Admitter interface {
	AdmitVote(ctx context.Context, voterID, sessionID string) (integrity.Decision, error)
}

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o rating.Outcome) (*rating.Vote, error)
}

type NameLookup interface {
	Names(ctx context.Context, ids ...string) (map[string]string, error)
}

// Options tune the arena.
type Options struct {
	MaxInputLength int
	// AllowAnonymous records votes without a voter id, skipping the guard.
	AllowAnonymous bool
}

// Service runs comparisons.
type Service struct {
	picker   PairPicker
	gen      PairGenerator
	sessions *session.Manager
	guard    Admitter
	recorder OutcomeRecorder
	names    NameLookup
	log      *logger.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// Deps are the collaborators of a Service.
type Deps struct {
	Picker   PairPicker
	Gen      PairGenerator
	Sessions *session.Manager
	Guard    Admitter
	Recorder OutcomeRecorder
	Names    NameLookup
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

func NewService(d Deps, opts Options) *Service {
	if opts.MaxInputLength <= 0 || opts.MaxInputLength > rating.MaxInputRunes {
		opts.MaxInputLength = rating.MaxInputRunes
	}
	return &Service{
		picker:   d.Picker,
		gen:      d.Gen,
		sessions: d.Sessions,
		guard:    d.Guard,
		recorder: d.Recorder,
		names:    d.Names,
		log:      d.Log,
		metrics:  d.Metrics,
		opts:     opts,
	}
}

// Request asks for a new comparison.
type Request struct {
	VoterID  string
	Input    string
	Category candidate.Category
}

// Comparison is what the client gets back: never the candidate identities.
type Comparison struct {
	SessionID string
	ExpiresIn time.Duration
}

// StartComparison picks two active candidates, renders input with both and
// opens a session. No session exists if generation fails.
func (s *Service) StartComparison(ctx context.Context, req Request) (*Comparison, error) {
	ctx, span := tracer.Start(ctx, "arena.StartComparison")
	defer span.End()
	span.SetAttributes(attribute.String("arena.category", string(req.Category)))

	if strings.TrimSpace(req.Input) == "" {
		return nil, apperr.InvalidInput("text is required")
	}
	if utf8.RuneCountInString(req.Input) > s.opts.MaxInputLength {
		return nil, apperr.InvalidInput("text exceeds %d characters", s.opts.MaxInputLength)
	}

	pair, err := s.picker.Pick(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	ids := [2]string{pair[0].ID, pair[1].ID}

	arts, err := s.gen.GeneratePair(ctx, req.Input, ids)
	if err != nil {
		return nil, err
	}

	id, err := s.sessions.CreateSession(session.Spec{
		Input:      req.Input,
		Category:   req.Category,
		VoterID:    req.VoterID,
		Candidates: ids,
		Artifacts:  [2]session.Artifact{arts[0], arts[1]},
	})
	if err != nil {
		for _, a := range arts {
			_ = a.Release()
		}
		return nil, err
	}
	s.log.Debug("comparison started", "session", id, "category", req.Category)
	return &Comparison{SessionID: id, ExpiresIn: s.sessions.TTL()}, nil
}

// FetchArtifact returns one side of a live session.
func (s *Service) FetchArtifact(sessionID, side string) (session.Artifact, error) {
	sd, err := session.ParseSide(side)
	if err != nil {
		return nil, err
	}
	return s.sessions.ResolveArtifact(sessionID, sd)
}

// Choice is a submitted vote.
type Choice struct {
	SessionID string
	Side      string
	VoterID   string
}

// Pick names one candidate after the vote.
type Pick struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result reveals the candidates once the vote is recorded.
type Result struct {
	VoteID   uint `json:"voteId"`
	Chosen   Pick `json:"chosen"`
	Rejected Pick `json:"rejected"`
}

// SubmitChoice admits, records and reveals one vote. If recording fails the
// session can be voted on again.
func (s *Service) SubmitChoice(ctx context.Context, ch Choice) (*Result, error) {
	ctx, span := tracer.Start(ctx, "arena.SubmitChoice")
	defer span.End()
	span.SetAttributes(attribute.Bool("arena.anonymous", ch.VoterID == ""))

	side, err := session.ParseSide(ch.Side)
	if err != nil {
		return nil, err
	}

	if ch.VoterID != "" || !s.opts.AllowAnonymous {
		d, err := s.guard.AdmitVote(ctx, ch.VoterID, ch.SessionID)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			s.metrics.VoteRejected(apperr.KindIntegrityDenied.String())
			return nil, apperr.Denied(d.Reason, d.Score)
		}
	}

	ballot, err := s.sessions.SubmitVote(ch.SessionID, side)
	if err != nil {
		s.metrics.VoteRejected(apperr.KindOf(err).String())
		return nil, err
	}
	defer ballot.RollbackUnlessCommitted()

	o := rating.Outcome{
		Input:    ballot.Input,
		WinnerID: ballot.WinnerID,
		LoserID:  ballot.LoserID,
		Category: ballot.Category,
	}
	if ch.VoterID != "" {
		o.VoterID = &ch.VoterID
	}
	vote, err := s.recorder.RecordOutcome(ctx, o)
	if err != nil {
		s.metrics.VoteRejected(apperr.KindOf(err).String())
		return nil, err
	}
	ballot.Commit()

	res := &Result{
		VoteID:   vote.ID,
		Chosen:   Pick{ID: ballot.WinnerID, Name: ballot.WinnerID},
		Rejected: Pick{ID: ballot.LoserID, Name: ballot.LoserID},
	}
	names, err := s.names.Names(ctx, ballot.WinnerID, ballot.LoserID)
	if err != nil {
		s.log.Warn("load candidate names failed", "vote", vote.ID, "error", err)
		return res, nil
	}
	if n, ok := names[ballot.WinnerID]; ok {
		res.Chosen.Name = n
	}
	if n, ok := names[ballot.LoserID]; ok {
		res.Rejected.Name = n
	}
	return res, nil
}

package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/database/dbtest"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/ratelimit"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/session"
	"github.com/SlpAus/arena-ranking-backend/internal/synthesis"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	fail bool
}

func (g *fakeGenerator) Generate(_ context.Context, input, candidateID string) (synthesis.Output, error) {
	if g.fail {
		return synthesis.Output{}, errors.New("router down")
	}
	return synthesis.Output{Data: []byte(candidateID + "|" + input)}, nil
}

// flakyRecorder fails the first n recordings.
type flakyRecorder struct {
	OutcomeRecorder
	n int
}

func (r *flakyRecorder) RecordOutcome(ctx context.Context, o rating.Outcome) (*rating.Vote, error) {
	if r.n > 0 {
		r.n--
		return nil, apperr.Storage(errors.New("disk full"), "record vote")
	}
	return r.OutcomeRecorder.RecordOutcome(ctx, o)
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	sessions *session.Manager
	voters   *voter.Repository
	store    *synthesis.Store
	gen      *fakeGenerator
	router   *gin.Engine
}

func newFixture(t *testing.T, opts Options, wrap func(OutcomeRecorder) OutcomeRecorder) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	models := append([]any{&candidate.Candidate{}, &voter.Voter{}, &integrity.Denial{}}, rating.Models()...)
	db := dbtest.Open(t, models...)
	log := logger.Nop()

	candidates := candidate.NewRepository(db)
	_, err := candidates.Seed(context.Background(), []candidate.SeedEntry{
		{ID: "alpha", Name: "Alpha TTS", Category: candidate.CategoryTTS},
		{ID: "beta", Name: "Beta TTS", Category: candidate.CategoryTTS},
		{ID: "gamma", Name: "Gamma Dialog", Category: candidate.CategoryConversational},
	})
	if err != nil {
		t.Fatal(err)
	}

	store, err := synthesis.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gen := &fakeGenerator{}
	voters := voter.NewRepository(db)
	sessions := session.NewManager(time.Minute, log, nil)

	var recorder OutcomeRecorder = rating.NewEngine(db, log, nil)
	if wrap != nil {
		recorder = wrap(recorder)
	}
	svc := NewService(Deps{
		Picker:   candidate.NewSelector(candidates),
		Gen:      synthesis.NewService(gen, store, log, nil),
		Sessions: sessions,
		Guard:    integrity.NewGuard(integrity.NewGormLedger(db, voters), log),
		Recorder: recorder,
		Names:    candidates,
		Log:      log,
	}, opts)

	r := gin.New()
	var limiter *ratelimit.Limiter
	pass := limiter.Middleware(ratelimit.ClientIP, log)
	NewHandler(svc, log).RegisterRoutes(r.Group("/api"), pass, pass)

	return &fixture{db: db, svc: svc, sessions: sessions, voters: voters, store: store, gen: gen, router: r}
}

func (f *fixture) do(t *testing.T, method, path, voterID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if voterID != "" {
		req.Header.Set("X-Voter-ID", voterID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) start(t *testing.T, voterID string) startResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/categories/tts/comparisons", voterID, map[string]string{"text": "Hello arena"})
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestAnonymousComparisonFlow(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, nil)
	cmp := f.start(t, "")
	if cmp.ExpiresIn != 60 || cmp.AudioA != "/api/comparisons/"+cmp.SessionID+"/artifacts/a" {
		t.Errorf("start = %+v", cmp)
	}

	w := f.do(t, http.MethodGet, cmp.AudioB, "", nil)
	if w.Code != http.StatusOK || !strings.HasSuffix(w.Body.String(), "|Hello arena") || w.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("artifact = %d %q %q", w.Code, w.Body.String(), w.Header().Get("Content-Type"))
	}
	sideB := strings.TrimSuffix(w.Body.String(), "|Hello arena")

	w = f.do(t, http.MethodPost, "/api/comparisons/"+cmp.SessionID+"/vote", "", map[string]string{"side": "b"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d: %s", w.Code, w.Body.String())
	}
	var res Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Chosen.ID != sideB || res.Chosen.ID == res.Rejected.ID || !strings.HasSuffix(res.Chosen.Name, "TTS") {
		t.Errorf("result = %+v", res)
	}

	var vote rating.Vote
	f.db.First(&vote, res.VoteID)
	if vote.VoterID != nil || vote.WinnerID != sideB || vote.Input != "Hello arena" {
		t.Errorf("vote = %+v", vote)
	}
	var winner candidate.Candidate
	f.db.First(&winner, "id = ?", sideB)
	if winner.Rating != 1516 || winner.WinCount != 1 {
		t.Errorf("winner = %+v", winner)
	}

	w = f.do(t, http.MethodPost, "/api/comparisons/"+cmp.SessionID+"/vote", "", map[string]string{"side": "a"})
	if w.Code != http.StatusConflict {
		t.Errorf("second vote status = %d, want 409", w.Code)
	}
	// audio stays available until the session is swept
	if w := f.do(t, http.MethodGet, cmp.AudioA, "", nil); w.Code != http.StatusOK {
		t.Errorf("artifact after vote = %d", w.Code)
	}
}

func TestRegisteredVoterIsRecorded(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, nil)
	if _, err := f.voters.Register(context.Background(), voter.Registration{ID: "u1", Username: "ann"}); err != nil {
		t.Fatal(err)
	}
	cmp := f.start(t, "u1")
	w := f.do(t, http.MethodPost, "/api/comparisons/"+cmp.SessionID+"/vote", "u1", map[string]string{"side": "a"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d: %s", w.Code, w.Body.String())
	}
	var vote rating.Vote
	f.db.Last(&vote)
	if vote.VoterID == nil || *vote.VoterID != "u1" {
		t.Errorf("vote voter = %v", vote.VoterID)
	}
}

func TestDeniedVoteLeavesSessionOpen(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, nil)
	cmp := f.start(t, "")

	w := f.do(t, http.MethodPost, "/api/comparisons/"+cmp.SessionID+"/vote", "ghost", map[string]string{"side": "a"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["kind"] != "integrity_denied" || body["score"] != float64(0) {
		t.Errorf("body = %v", body)
	}

	var n int64
	f.db.Model(&rating.Vote{}).Count(&n)
	if n != 0 {
		t.Errorf("votes = %d after denial", n)
	}
	var denials int64
	f.db.Model(&integrity.Denial{}).Where("session_id = ?", cmp.SessionID).Count(&denials)
	if denials != 1 {
		t.Errorf("denials = %d", denials)
	}

	if w := f.do(t, http.MethodPost, "/api/comparisons/"+cmp.SessionID+"/vote", "", map[string]string{"side": "a"}); w.Code != http.StatusOK {
		t.Errorf("anonymous vote after denial = %d", w.Code)
	}
}

func TestAnonymousVotingDisabled(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: false}, nil)
	cmp := f.start(t, "")
	_, err := f.svc.SubmitChoice(context.Background(), Choice{SessionID: cmp.SessionID, Side: "a"})
	if !errors.Is(err, apperr.ErrIntegrityDenied) {
		t.Errorf("err = %v, want integrity denied", err)
	}
}

func TestGenerationFailureLeavesNoSession(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, nil)
	f.gen.fail = true

	w := f.do(t, http.MethodPost, "/api/categories/tts/comparisons", "", map[string]string{"text": "hi"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if f.sessions.Active() != 0 {
		t.Errorf("Active() = %d", f.sessions.Active())
	}
	entries, _ := os.ReadDir(f.store.Dir())
	if len(entries) != 0 {
		t.Errorf("audio files left: %d", len(entries))
	}
}

func TestStartComparisonRejects(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true, MaxInputLength: 10}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		kind apperr.Kind
	}{
		{"blank text", Request{Input: "  ", Category: candidate.CategoryTTS}, apperr.KindInvalidInput},
		{"too long", Request{Input: strings.Repeat("é", 11), Category: candidate.CategoryTTS}, apperr.KindInvalidInput},
		{"unknown category", Request{Input: "hi", Category: "music"}, apperr.KindInvalidInput},
		{"single candidate", Request{Input: "hi", Category: candidate.CategoryConversational}, apperr.KindInsufficientCandidatePool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.StartComparison(ctx, tt.req)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v (%v), want %v", got, err, tt.kind)
			}
		})
	}
	if _, err := f.svc.StartComparison(ctx, Request{Input: strings.Repeat("é", 10), Category: candidate.CategoryTTS}); err != nil {
		t.Errorf("10 runes rejected: %v", err)
	}
}

func TestRecordFailureReopensSession(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, func(r OutcomeRecorder) OutcomeRecorder {
		return &flakyRecorder{OutcomeRecorder: r, n: 1}
	})
	ctx := context.Background()
	cmp, err := f.svc.StartComparison(ctx, Request{Input: "hi", Category: candidate.CategoryTTS})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.SubmitChoice(ctx, Choice{SessionID: cmp.SessionID, Side: "a"})
	if !errors.Is(err, apperr.ErrStorageFailure) {
		t.Fatalf("err = %v, want storage failure", err)
	}
	if _, err := f.svc.SubmitChoice(ctx, Choice{SessionID: cmp.SessionID, Side: "a"}); err != nil {
		t.Fatalf("retry after failed record: %v", err)
	}
	if _, err := f.svc.SubmitChoice(ctx, Choice{SessionID: cmp.SessionID, Side: "b"}); !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Errorf("third vote err = %v", err)
	}
}

func TestArtifactErrors(t *testing.T) {
	f := newFixture(t, Options{AllowAnonymous: true}, nil)
	cmp := f.start(t, "")
	if w := f.do(t, http.MethodGet, "/api/comparisons/"+cmp.SessionID+"/artifacts/c", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad side = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/comparisons/nope/artifacts/a", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", w.Code)
	}
}

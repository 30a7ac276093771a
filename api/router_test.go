package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/arena"
	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/database/dbtest"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/health"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/startup"
	"github.com/SlpAus/arena-ranking-backend/internal/ranking"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/session"
	"github.com/SlpAus/arena-ranking-backend/internal/synthesis"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const adminToken = "s3cret"

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, input, candidateID string) (synthesis.Output, error) {
	return synthesis.Output{Data: []byte(candidateID + ":" + input)}, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	log := logger.Nop()
	ctx := context.Background()

	if _, err := startup.Initialize(ctx, db, log, []candidate.SeedEntry{
		{ID: "alpha", Name: "Alpha", Category: candidate.CategoryTTS},
		{ID: "beta", Name: "Beta", Category: candidate.CategoryTTS},
	}); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	store, err := synthesis.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	candidates := candidate.NewRepository(db)
	voters := voter.NewRepository(db)
	sessions := session.NewManager(time.Minute, log, m)
	ratings := rating.NewEngine(db, log, m)
	guard := integrity.NewGuard(integrity.NewGormLedger(db, voters), log)
	svc := arena.NewService(arena.Deps{
		Picker:   candidate.NewSelector(candidates),
		Gen:      synthesis.NewService(echoGenerator{}, store, log, m),
		Sessions: sessions,
		Guard:    guard,
		Recorder: ratings,
		Names:    candidates,
		Log:      log,
		Metrics:  m,
	}, arena.Options{AllowAnonymous: true})

	return NewRouter(Handlers{
		Arena:      arena.NewHandler(svc, log),
		Ranking:    ranking.NewHandler(ranking.NewEngine(db, ranking.Counters{Votes: ratings, Candidates: candidates, Voters: voters}), log),
		Voters:     voter.NewHandler(voters, log),
		Candidates: candidate.NewHandler(candidates, log),
		Ratings:    rating.NewHandler(ratings, log),
		Integrity:  integrity.NewHandler(guard, log),
		Sessions:   session.NewHandler(sessions),
		Health:     health.NewChecker(db, nil, log),
	}, Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		AdminToken:     adminToken,
		ServiceName:    "arena-test",
		Registry:       reg,
		Log:            log,
	})
}

func do(r *gin.Engine, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicRoutes(t *testing.T) {
	r := newRouter(t)

	if w := do(r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("/healthz = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/categories/tts/leaderboard", "", nil); w.Code != http.StatusOK {
		t.Errorf("leaderboard = %d: %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/voters/top", "", nil); w.Code != http.StatusOK {
		t.Errorf("top voters = %d", w.Code)
	}
}

func TestComparisonThroughRouterUpdatesMetrics(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/categories/tts/comparisons", "", map[string]string{"text": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &started)

	w = do(r, http.MethodPost, "/api/comparisons/"+started.SessionID+"/vote", "", map[string]string{"side": "a"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote = %d: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `arena_votes_recorded_total{category="tts"} 1`) {
		t.Errorf("metrics missing vote counter:\n%s", w.Body.String())
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r := newRouter(t)

	for _, path := range []string{"/api/admin/sessions", "/api/admin/candidates", "/api/admin/stats", "/api/admin/integrity/denials"} {
		if w := do(r, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token = %d, want 401", path, w.Code)
		}
		if w := do(r, http.MethodGet, path, "wrong", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s with wrong token = %d, want 401", path, w.Code)
		}
		if w := do(r, http.MethodGet, path, adminToken, nil); w.Code != http.StatusOK {
			t.Errorf("%s with token = %d: %s", path, w.Code, w.Body.String())
		}
	}
}

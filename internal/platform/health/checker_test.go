package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/database/dbtest"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestCheckTracksRedis(t *testing.T) {
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	c := NewChecker(db, rdb, logger.Nop())
	ctx := context.Background()

	r := c.Check(ctx)
	if r.State != StateHealthy || r.Checks["redis"] != "ok" || r.Checks["database"] != "ok" {
		t.Fatalf("report = %+v", r)
	}

	mr.Close()
	if r := c.Check(ctx); r.State != StateDegraded || r.Checks["redis"] != "unreachable" {
		t.Errorf("after redis stop = %+v", r)
	}
	if c.Last().State != StateDegraded {
		t.Errorf("Last() = %+v", c.Last())
	}
}

func TestCheckWithoutRedis(t *testing.T) {
	c := NewChecker(dbtest.Open(t), nil, logger.Nop())
	if r := c.Check(context.Background()); r.State != StateHealthy || r.Checks["redis"] != "disabled" {
		t.Errorf("report = %+v", r)
	}
}

func TestHandlerReportsUnavailableDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	c := NewChecker(db, nil, logger.Nop())
	r := gin.New()
	r.GET("/healthz", c.Handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", w.Code)
	}
}

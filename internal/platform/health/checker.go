// Package health pings the database and Redis and serves the result.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/pkg/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Checker keeps the latest report. rdb may be nil when Redis is not configured.
type Checker struct {
	db  *gorm.DB
	rdb *redis.Client
	log *logger.Logger

	mu   sync.RWMutex
	last Report
}

func NewChecker(db *gorm.DB, rdb *redis.Client, log *logger.Logger) *Checker {
	return &Checker{db: db, rdb: rdb, log: log, last: Report{State: StateHealthy, Checks: map[string]string{}}}
}

// Check pings every dependency, stores the report and logs state changes.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	r := Report{State: StateHealthy, Checks: make(map[string]string), CheckedAt: time.Now().UTC()}

	if err := c.pingDB(ctx); err != nil {
		r.State = StateUnavailable
		r.Checks["database"] = err.Error()
	} else {
		r.Checks["database"] = "ok"
	}

	switch {
	case c.rdb == nil:
		r.Checks["redis"] = "disabled"
	case c.rdb.Ping(ctx).Err() != nil:
		r.Checks["redis"] = "unreachable"
		if r.State == StateHealthy {
			r.State = StateDegraded
		}
	default:
		r.Checks["redis"] = "ok"
	}

	c.mu.Lock()
	prev := c.last.State
	c.last = r
	c.mu.Unlock()

	if prev != r.State {
		c.log.Warn("health state changed", "from", prev.String(), "to", r.State.String(), "checks", r.Checks)
	}
	return r
}

func (c *Checker) pingDB(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Last returns the most recent report.
func (c *Checker) Last() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Start runs Check every interval until handle is cancelled.
func (c *Checker) Start(handle *lifecycle.Handle, interval time.Duration) {
	go func() {
		defer handle.Close()
		c.Check(handle.Ctx())
		for {
			if err := handle.Sleep(interval); err != nil {
				return
			}
			c.Check(handle.Ctx())
		}
	}()
}

// Handler serves a fresh report: 503 when the database is unreachable.
func (c *Checker) Handler(ctx *gin.Context) {
	r := c.Check(ctx.Request.Context())
	status := http.StatusOK
	if r.State == StateUnavailable {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, r)
}

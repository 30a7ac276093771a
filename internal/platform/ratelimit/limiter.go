// Package ratelimit implements per-client request quotas on Redis sorted
// sets: every accepted request is one member scored by its timestamp, and the
// window is trimmed on each call.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Limiter is a sliding-window counter. A nil *Limiter allows everything.
type Limiter struct {
	rdb    *redis.Client
	name   string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// New returns a limiter allowing limit requests per window for each key.
// It returns nil when rdb is nil or limit is not positive.
func New(rdb *redis.Client, name string, limit int, window time.Duration) *Limiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	return &Limiter{
		rdb:    rdb,
		name:   name,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Reservation is one counted request. Unless committed, it can be handed
// back so failed requests do not consume quota.
type Reservation struct {
	limiter   *Limiter
	key       string
	member    string
	committed bool
}

// Reserve records one request for clientKey and returns how many requests
// are in the window including this one. When the quota is exceeded the
// request is removed again and allowed is false.
func (l *Limiter) Reserve(ctx context.Context, clientKey string) (allowed bool, count int64, res *Reservation, err error) {
	if l == nil {
		return true, 0, nil, nil
	}
	if clientKey == "" {
		return false, 0, nil, errors.New("rate limit key is empty")
	}

	now := l.now()
	key := keyPrefix + l.name + ":" + clientKey
	minScore := float64(now.Add(-l.window).UnixMicro())
	id, err := uuid.NewV7()
	if err != nil {
		return false, 0, nil, fmt.Errorf("generate member id: %w", err)
	}
	member := id.String()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatFloat(minScore, 'f', -1, 64))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, l.window+time.Minute)
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, nil, fmt.Errorf("rate limit transaction: %w", err)
	}

	count = countCmd.Val()
	res = &Reservation{limiter: l, key: key, member: member}
	if count > l.limit {
		res.RollbackUnlessCommitted(ctx)
		return false, count - 1, nil, nil
	}
	return true, count, res, nil
}

// Commit keeps the reservation counted.
func (r *Reservation) Commit() {
	if r != nil {
		r.committed = true
	}
}

// RollbackUnlessCommitted removes the reservation from the window if Commit
// was not called. It is meant to be deferred.
func (r *Reservation) RollbackUnlessCommitted(ctx context.Context) error {
	if r == nil || r.committed {
		return nil
	}
	r.committed = true
	return r.limiter.rdb.ZRem(context.WithoutCancel(ctx), r.key, r.member).Err()
}

// ClientIP keys requests by the caller's address.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware enforces the limiter on a route. Requests answered with a 5xx
// status are handed back to the quota. Redis failures let the request through.
func (l *Limiter) Middleware(keyFn func(*gin.Context) string, log *logger.Logger) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		allowed, count, res, err := l.Reserve(ctx, keyFn(c))
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", "limiter", l.name, "error", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded: %d requests per %s", l.limit, l.window),
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(l.limit-count, 10))

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError {
			res.Commit()
		}
		if err := res.RollbackUnlessCommitted(ctx); err != nil {
			log.Error("rate limit rollback failed", "limiter", l.name, "error", err)
		}
	}
}

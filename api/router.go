// Package api assembles the HTTP surface of the arena.
package api

import (
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/arena"
	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/health"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/ranking"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/session"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handlers are the mounted route groups.
type Handlers struct {
	Arena      *arena.Handler
	Ranking    *ranking.Handler
	Voters     *voter.Handler
	Candidates *candidate.Handler
	Ratings    *rating.Handler
	Integrity  *integrity.Handler
	Sessions   *session.Handler
	Health     *health.Checker
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	AdminToken     string
	ServiceName    string
	Registry       *prometheus.Registry
	Log            *logger.Logger
	// GenerateLimit and VoteLimit guard the comparison endpoints. Nil passes through.
	GenerateLimit gin.HandlerFunc
	VoteLimit     gin.HandlerFunc
}

func passThrough(c *gin.Context) { c.Next() }

// NewRouter builds the gin engine with every route mounted.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Log))
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpx.VoterHeader},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if h.Health != nil {
		r.GET("/healthz", h.Health.Handler)
	}
	if opts.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	generateLimit, voteLimit := opts.GenerateLimit, opts.VoteLimit
	if generateLimit == nil {
		generateLimit = passThrough
	}
	if voteLimit == nil {
		voteLimit = passThrough
	}

	api := r.Group("/api")
	{
		h.Arena.RegisterRoutes(api, generateLimit, voteLimit)
		h.Ranking.RegisterRoutes(api.Group("/categories/:category"))
		h.Voters.RegisterRoutes(api)
	}

	admin := api.Group("/admin", httpx.AdminOnly(opts.AdminToken))
	{
		h.Candidates.RegisterAdminRoutes(admin)
		h.Ratings.RegisterAdminRoutes(admin)
		h.Ranking.RegisterAdminRoutes(admin)
		h.Integrity.RegisterAdminRoutes(admin)
		h.Sessions.RegisterAdminRoutes(admin)
		h.Voters.RegisterAdminRoutes(admin)
	}
	return r
}

// requestLogger writes one structured line per request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"client", c.ClientIP(),
		}
		switch {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Debug("request", kv...)
		}
	}
}

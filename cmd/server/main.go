package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/arena-ranking-backend/api"
	"github.com/SlpAus/arena-ranking-backend/internal/arena"
	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/config"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/database"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/health"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/ratelimit"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/shutdown"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/startup"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/tracing"
	"github.com/SlpAus/arena-ranking-backend/internal/ranking"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/session"
	"github.com/SlpAus/arena-ranking-backend/internal/synthesis"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"github.com/SlpAus/arena-ranking-backend/pkg/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer log.Sync()
	gin.SetMode(ginMode(cfg.Server.Mode))

	ctx := context.Background()

	stopTracing, err := tracing.Setup(cfg.Tracing, log)
	if err != nil {
		log.Fatal("init tracing", "error", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("open redis", "error", err)
	}
	if rdb == nil {
		log.Warn("redis not configured, request quotas disabled")
	}

	if _, err := startup.Initialize(ctx, db, log, candidate.SeedCatalog); err != nil {
		log.Fatal("initialize application", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		log.Fatal("register metrics", "error", err)
	}

	store, err := synthesis.NewStore(cfg.Synthesis.AudioDir)
	if err != nil {
		log.Fatal("create artifact store", "error", err)
	}
	if cfg.Synthesis.Endpoint == "" {
		log.Warn("synthesis.endpoint is empty, comparisons will fail")
	}

	candidates := candidate.NewRepository(db)
	voters := voter.NewRepository(db)
	ratings := rating.NewEngine(db, log, m)
	sessions := session.NewManager(cfg.Arena.SessionTTL, log, m)
	guard := integrity.NewGuard(integrity.NewGormLedger(db, voters), log)
	arenaSvc := arena.NewService(arena.Deps{
		Picker:   candidate.NewSelector(candidates),
		Gen:      synthesis.NewService(synthesis.NewHTTPGenerator(cfg.Synthesis.Endpoint, cfg.Synthesis.Timeout), store, log, m),
		Sessions: sessions,
		Guard:    guard,
		Recorder: ratings,
		Names:    candidates,
		Log:      log,
		Metrics:  m,
	}, arena.Options{
		MaxInputLength: cfg.Arena.MaxInputLength,
		AllowAnonymous: cfg.Arena.AllowAnonymous,
	})

	gracefulMgr := lifecycle.NewManager("graceful", log.SugaredLogger)
	forcefulMgr := lifecycle.NewManager("forceful", log.SugaredLogger)

	sweeper, err := gracefulMgr.NewServiceHandle("session-sweeper")
	if err != nil {
		log.Fatal("register sweeper", "error", err)
	}
	sessions.StartSweeper(sweeper, cfg.Arena.SweepInterval)

	checker := health.NewChecker(db, rdb, log)
	healthHandle, err := gracefulMgr.NewServiceHandle("health-checker")
	if err != nil {
		log.Fatal("register health checker", "error", err)
	}
	checker.Start(healthHandle, cfg.Server.HealthInterval)

	generateLimiter := ratelimit.New(rdb, "generate", cfg.RateLimit.GeneratePerMinute, time.Minute)
	voteLimiter := ratelimit.New(rdb, "vote", cfg.RateLimit.VotePerMinute, time.Minute)

	router := api.NewRouter(api.Handlers{
		Arena:      arena.NewHandler(arenaSvc, log),
		Ranking:    ranking.NewHandler(ranking.NewEngine(db, ranking.Counters{Votes: ratings, Candidates: candidates, Voters: voters}), log),
		Voters:     voter.NewHandler(voters, log),
		Candidates: candidate.NewHandler(candidates, log),
		Ratings:    rating.NewHandler(ratings, log),
		Integrity:  integrity.NewHandler(guard, log),
		Sessions:   session.NewHandler(sessions),
		Health:     checker,
	}, api.Options{
		AllowedOrigins: cfg.Server.Cors.AllowedOrigins,
		AdminToken:     cfg.Server.AdminToken,
		ServiceName:    tracingService(cfg.Tracing),
		Registry:       reg,
		Log:            log,
		GenerateLimit:  generateLimiter.Middleware(ratelimit.ClientIP, log),
		VoteLimit:      voteLimiter.Middleware(ratelimit.ClientIP, log),
	})
	if cfg.Server.AdminToken == "" {
		log.Warn("server.adminToken is empty, admin routes are disabled")
	}

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr, log, shutdown.DefaultTimeouts(cfg.Server.ShutdownTimeout))
	coordinator.OnShutdown("sessions", func(context.Context) error {
		log.Info("released comparison sessions", "count", sessions.DestroyAll())
		return nil
	})
	coordinator.OnShutdown("tracing", stopTracing)
	if rdb != nil {
		coordinator.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	}
	coordinator.OnShutdown("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	go func() {
		log.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	coordinator.ListenForSignalsAndShutdown(server)
}

func ginMode(mode string) string {
	switch mode {
	case "release", "prod", "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	}
	return gin.DebugMode
}

// tracingService returns "" when tracing is off so the router skips otelgin.
func tracingService(cfg config.TracingConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.ServiceName
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/cmd/api/auth"
	"github.com/servicedesk/sla-engine/cmd/api/handlers"
	"github.com/servicedesk/sla-engine/cmd/api/metrics"
	"github.com/servicedesk/sla-engine/cmd/api/migrations"
	"github.com/servicedesk/sla-engine/cmd/api/slas"
	"github.com/servicedesk/sla-engine/internal/ratelimit"
	"github.com/servicedesk/sla-engine/internal/telemetry"
)

const serviceName = "sla-api"

func main() {
	_ = godotenv.Load()
	cfg := app.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if _, _, err := cfg.Calendar(); err != nil {
		log.Fatal().Err(err).Msg("calendar config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(serviceName)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	if err := migrations.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrate up")
	}

	var keyf jwt.Keyfunc
	if cfg.JWKSURL != "" {
		keyf, err = jwksKeyfunc(ctx, cfg.JWKSURL, &http.Client{Timeout: 10 * time.Second}, 10*time.Minute)
		if err != nil {
			log.Fatal().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("fetch jwks")
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	metrics.Register(prometheus.DefaultRegisterer)

	a := app.NewApp(cfg, pool, keyf, rdb)
	routes(a)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        otelhttp.NewHandler(a.R, serviceName),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("timezone", a.Loc.String()).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func routes(a *app.App) {
	a.R.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	a.R.GET("/metrics", metrics.Handler())

	limiter := ratelimit.New(a.Q, a.Cfg.ClientRateLimit, "sla:")
	if limiter != nil {
		limiter.OnReject = func(c *gin.Context) {
			metrics.RateLimitRejectionsTotal.WithLabelValues(c.FullPath()).Inc()
		}
	}

	g := a.R.Group("/")
	g.Use(auth.Middleware(a))
	g.GET("/me", auth.Me)
	g.GET("/features", handlers.Features(a))
	slas.Register(g, a, limiter.Middleware(ratelimit.ClientIP))
}

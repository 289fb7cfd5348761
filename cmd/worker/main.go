package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/internal/clock"
	"github.com/servicedesk/sla-engine/internal/store"
	"github.com/servicedesk/sla-engine/internal/telemetry"
)

type Config struct {
	apppkg.Config
	SweepInterval time.Duration
}

func cfg() Config {
	_ = godotenv.Load()
	c := Config{Config: apppkg.GetConfig(), SweepInterval: time.Minute}
	if v, err := time.ParseDuration(apppkg.GetEnv("SWEEP_INTERVAL", "1m")); err == nil && v > 0 {
		c.SweepInterval = v
	}
	return c
}

func main() {
	c := cfg()
	if c.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	loc, fallback, err := c.Calendar()
	if err != nil {
		log.Fatal().Err(err).Msg("calendar config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup("sla-worker")
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("redis ping failed (queue not active yet)")
	}
	defer rdb.Close()

	w := &Worker{
		DB:       db,
		Source:   &store.Source{DB: db, Cache: store.NewCache(rdb, c.CacheTTL)},
		Loc:      loc,
		Fallback: fallback,
		Clock:    clock.NewSystem(),
	}

	go func() {
		ticker := time.NewTicker(c.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.Sweep(ctx); err != nil {
					log.Error().Err(err).Msg("sla sweep")
				}
			}
		}
	}()

	log.Info().Dur("sweep_interval", c.SweepInterval).Str("timezone", loc.String()).Msg("worker started")
	for ctx.Err() == nil {
		err := processQueueJob(ctx, rdb, w, 5*time.Second)
		if err == nil || errors.Is(err, redis.Nil) || ctx.Err() != nil {
			continue
		}
		log.Error().Err(err).Msg("process job")
		time.Sleep(time.Second)
	}
	log.Info().Msg("worker stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"jumble-api/api"
	"jumble-api/config"
	"jumble-api/logging"
	"jumble-api/middleware/ratelimit"
	"jumble-api/middleware/ratelimit/application"
	"jumble-api/middleware/ratelimit/domain"
	"jumble-api/middleware/ratelimit/infra"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records := infra.NewMemoryRecordStore(
		infra.WithIdleTTL(cfg.RateLimit.EffectiveIdleTTL()),
		infra.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
	)
	records.StartJanitor(ctx, func(removed int) {
		if removed > 0 {
			logger.Debug("rate limit records evicted", slog.Int("removed", removed), slog.Int("remaining", records.Len()))
		}
	})

	if cfg.RateLimit.MaxCalls == 1 {
		logger.Warn("RATE_LIMIT_MAX_CALLS=1 denies the first call of each window and allows the rest")
	}

	limiter, err := application.NewLimiter(records, cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}

	stats, closeStats, err := initStats(cfg.Stats, cfg.StatsBackend())
	if err != nil {
		return err
	}
	defer closeStats()

	deps := api.Deps{
		RateLimit: ratelimit.Middleware(ratelimit.Options{
			Limiter:             limiter,
			Stats:               stats,
			KeyHeader:           cfg.RateLimit.KeyHeader,
			TrustXForwardedFor:  cfg.RateLimit.TrustXFF,
			AddRateLimitHeaders: cfg.RateLimit.AddHeaders,
			Logger:              logger,
		}),
		Logger:  logger,
		Version: version,
	}
	if reader, ok := stats.(domain.StatsReader); ok {
		deps.Stats = reader
	}
	if cfg.Inflight.Max > 0 {
		pool := infra.NewChanPool(cfg.Inflight.Max)
		deps.Inflight = ratelimit.InflightMiddleware(ratelimit.InflightOptions{
			Pool:           pool,
			AcquireTimeout: cfg.Inflight.Timeout,
			Logger:         logger,
		})
		deps.InflightGauge = pool
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("jumble api listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("version", version),
		slog.Int("max_calls", cfg.RateLimit.MaxCalls),
		slog.Duration("window", cfg.RateLimit.Window),
		slog.Duration("idle_ttl", records.IdleTTL()),
		slog.String("key_header", cfg.RateLimit.KeyHeader),
		slog.Bool("trust_xff", cfg.RateLimit.TrustXFF),
		slog.Int("concurrency_max", cfg.Inflight.Max),
		slog.String("stats", cfg.StatsBackend()),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func initStats(cfg config.StatsConfig, backend string) (domain.StatsStore, func(), error) {
	switch backend {
	case "memory":
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.TrackKeys)), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis stats ping: %w", err)
		}

		store := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Prefix),
			infra.WithStatsTTL(cfg.TTL),
			infra.WithStatsBucket(cfg.Bucket),
			infra.WithStatsTrackKeys(cfg.TrackKeys),
		)
		return store, func() { _ = rdb.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

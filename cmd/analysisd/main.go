package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seriesso/semantic-analysis/internal/analysis"
	"github.com/seriesso/semantic-analysis/internal/cache"
	"github.com/seriesso/semantic-analysis/internal/config"
	"github.com/seriesso/semantic-analysis/internal/model"
	"github.com/seriesso/semantic-analysis/internal/model/remote"
	"github.com/seriesso/semantic-analysis/internal/pipeline"
	"github.com/seriesso/semantic-analysis/internal/server"
	"github.com/seriesso/semantic-analysis/internal/telemetry"
)

const version = "1.0.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("semantic-analysis", version, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store := buildCacheStore(cfg, logger)
	resultCache := cache.NewResultCache(store,
		cfg.Models.Emotion.Version, cfg.Models.Sentiment.Version,
		cfg.Cache.TTL, logger)
	defer func() {
		if err := resultCache.Close(); err != nil {
			logger.Warn("cache close failed", slog.String("error", err.Error()))
		}
	}()

	runner := buildRunner(cfg, logger)

	analyzer := pipeline.NewAnalyzer(runner, resultCache,
		analysis.QualityWeights{
			Positive:           cfg.Quality.PositiveWeight,
			Valence:            cfg.Quality.ValenceWeight,
			Engagement:         cfg.Quality.EngagementWeight,
			SaturationMessages: cfg.Quality.SaturationMessages,
		},
		pipeline.Options{
			MaxBatchSize:   cfg.Models.MaxBatchSize,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		logger)

	if cfg.Models.WarmupOnStart {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := analyzer.WarmUp(ctx); err != nil {
				logger.Error("startup warm-up failed, models load on first request",
					slog.String("error", err.Error()))
				return
			}
			logger.Info("models warmed up")
		}()
	}

	handler := server.NewHandler(analyzer, server.ModelInfo{
		EmotionModel:   cfg.Models.Emotion.Name,
		SentimentModel: cfg.Models.Sentiment.Name,
	}, logger)
	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildCacheStore assembles the cache tiers from configuration. Caching off
// means a no-op store; Redis configured means a local tier in front of it.
func buildCacheStore(cfg *config.Config, logger *slog.Logger) cache.Store {
	if !cfg.Cache.Enabled {
		logger.Info("result cache disabled")
		return cache.NoopStore{}
	}
	local := cache.NewLocalStore(cfg.Cache.LocalEntries, cfg.Cache.TTL)
	if cfg.Cache.Redis.Addr == "" {
		logger.Info("result cache: local only", slog.Int("entries", cfg.Cache.LocalEntries))
		return local
	}
	redis := cache.NewRedisStore(cache.RedisOptions{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		TLS:      cfg.Cache.Redis.TLS,
	}, logger)
	logger.Info("result cache: local + redis", slog.String("addr", cfg.Cache.Redis.Addr))
	return cache.NewTieredStore(local, redis)
}

// buildRunner wires the two classifier backends, each behind its own circuit
// breaker, into the shared Runner that serializes accelerator access.
func buildRunner(cfg *config.Config, logger *slog.Logger) *model.Runner {
	breakerCfg := model.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
		Interval:    cfg.Breaker.Interval,
	}

	emotion := model.NewBreakerBackend("emotion",
		remote.NewClient(cfg.Models.Emotion.URL, cfg.Models.ConnTimeout, cfg.Models.RespTimeout),
		breakerCfg, logger)
	sentiment := model.NewBreakerBackend("sentiment",
		remote.NewClient(cfg.Models.Sentiment.URL, cfg.Models.ConnTimeout, cfg.Models.RespTimeout),
		breakerCfg, logger)

	return model.NewRunner(emotion, sentiment, cfg.Models.InferenceSlots, logger)
}

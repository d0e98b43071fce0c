package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/cache"
	"github.com/creator-radar/video-signal-engine-go/internal/config"
	"github.com/creator-radar/video-signal-engine-go/internal/db"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/discovery"
	"github.com/creator-radar/video-signal-engine-go/internal/handler"
	"github.com/creator-radar/video-signal-engine-go/internal/provider/youtube"
	"github.com/creator-radar/video-signal-engine-go/internal/queue"
	"github.com/creator-radar/video-signal-engine-go/internal/quota"
	"github.com/creator-radar/video-signal-engine-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	log := logger.Named("server")

	if cfg.Provider.APIKey == "" {
		log.Fatal("provider API key is required (APP_PROVIDER_APIKEY)")
	}
	if len(cfg.Server.APIKeys) == 0 {
		log.Warn("no API keys configured, all API requests will be rejected")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("database connection established", zap.Int32("max_conns", pool.Config().MaxConns))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The feed survives without redis; cache reads miss and writes fail
		// with a warning, at a quota cost.
		log.Warn("redis unreachable at startup", zap.Error(err))
	}

	providerClient, err := youtube.NewClient(ctx, cfg.Provider.APIKey, cfg.Provider.MaxRetries, cfg.Provider.InitialBackoff)
	if err != nil {
		log.Fatal("failed to init provider client", zap.Error(err))
	}

	snapshotRepo := repository.NewSnapshotRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool, cfg.Quota.DailyLimit)

	quotaManager := quota.NewManager(quotaRepo, cfg.Quota.DailyLimit, cfg.Quota.ThresholdPercent, logger.Named("quota"))
	feedCache := cache.NewFeedCache(redisClient, cfg.Discovery.CacheMaxAge)

	service := discovery.NewService(
		providerClient,
		snapshotRepo,
		feedCache,
		quotaManager,
		cfg.Discovery,
		logger.Named("discovery"),
	)

	queueClient := queue.NewClient(cfg.Redis, logger.Named("queue"))
	defer queueClient.Close()
	service.SetRefreshQueue(queueClient)

	feedHandler := handler.NewFeedHandler(service, logger.Named("handler"))
	opsHandler := handler.NewOpsHandler(pool, redisClient, quotaManager, logger.Named("handler"))

	router := handler.NewRouter(feedHandler, opsHandler, cfg.Server.APIKeys, logger.Named("http"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				log.Error("failed to close server", zap.Error(err))
			}
			os.Exit(1)
		}

		log.Info("server stopped gracefully")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/config"
	"github.com/creator-radar/video-signal-engine-go/internal/db"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/provider/youtube"
	"github.com/creator-radar/video-signal-engine-go/internal/queue"
	"github.com/creator-radar/video-signal-engine-go/internal/quota"
	"github.com/creator-radar/video-signal-engine-go/pkg/logger"
)

const sweepLimit = 200

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

	log := logger.Named("worker")

	if cfg.Provider.APIKey == "" {
		log.Fatal("provider API key is required (APP_PROVIDER_APIKEY)")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("database connection established")

	providerClient, err := youtube.NewClient(ctx, cfg.Provider.APIKey, cfg.Provider.MaxRetries, cfg.Provider.InitialBackoff)
	if err != nil {
		log.Fatal("failed to init provider client", zap.Error(err))
	}

	videoRepo := repository.NewCompetitorVideoRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool, cfg.Quota.DailyLimit)

	quotaManager := quota.NewManager(quotaRepo, cfg.Quota.DailyLimit, cfg.Quota.ThresholdPercent, logger.Named("quota"))

	if info, err := quotaManager.Info(ctx); err != nil {
		log.Warn("failed to read quota position at startup", zap.Error(err))
	} else {
		log.Info("quota status",
			zap.Int("used", info.QuotaUsed),
			zap.Int("limit", info.QuotaLimit),
			zap.Int("remaining", info.QuotaRemaining),
		)
	}

	refreshHandler := queue.NewRefreshHandler(
		providerClient,
		videoRepo,
		snapshotRepo,
		quotaManager,
		cfg.Discovery.SnapshotInterval,
		logger.Named("refresh"),
	)

	redisOpt := queue.RedisOpt(cfg.Redis)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeRefreshSnapshots, refreshHandler)

	// The sweep keeps snapshot histories growing for channels nobody has
	// looked at recently, so velocity anchors are already in place on the
	// next visit.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	sweepPayload, err := (&queue.RefreshPayload{Limit: sweepLimit, Source: "sweep"}).Marshal()
	if err != nil {
		log.Fatal("failed to marshal sweep payload", zap.Error(err))
	}
	sweepSpec := fmt.Sprintf("@every %s", cfg.Discovery.SnapshotInterval)
	if _, err := scheduler.Register(sweepSpec, asynq.NewTask(queue.TypeRefreshSnapshots, sweepPayload)); err != nil {
		log.Fatal("failed to register sweep schedule", zap.Error(err))
	}

	serverErrors := make(chan error, 2)
	go func() {
		log.Info("worker starting", zap.Int("concurrency", cfg.Worker.Concurrency))
		serverErrors <- srv.Run(mux)
	}()
	go func() {
		log.Info("sweep scheduler starting", zap.String("spec", sweepSpec))
		serverErrors <- scheduler.Run()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("worker error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		scheduler.Shutdown()
		srv.Shutdown()
		log.Info("worker stopped gracefully")
	}
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/config"
)

// Client enqueues snapshot refresh tasks.
type Client struct {
	asynqClient *asynq.Client
	log         *zap.Logger
}

// RedisOpt builds the asynq connection options from the shared redis config.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient creates a queue client.
func NewClient(cfg config.RedisConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		asynqClient: asynq.NewClient(RedisOpt(cfg)),
		log:         log,
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.asynqClient.Close()
}

// EnqueueRefresh schedules a refresh for specific videos after the given
// delay. Used by the server after an uncached discovery so fresh competitors
// get their next snapshot on cadence even without further dashboard traffic.
func (c *Client) EnqueueRefresh(ctx context.Context, videoIDs []string, delay time.Duration, source string) error {
	if len(videoIDs) == 0 {
		return nil
	}

	payload := &RefreshPayload{VideoIDs: videoIDs, Source: source}
	payloadBytes, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal refresh payload: %w", err)
	}

	task := asynq.NewTask(TypeRefreshSnapshots, payloadBytes)

	info, err := c.asynqClient.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue refresh task: %w", err)
	}

	c.log.Info("refresh task enqueued",
		zap.String("task_id", info.ID),
		zap.Int("videos", len(videoIDs)),
		zap.Duration("delay", delay),
		zap.String("source", source),
	)

	return nil
}

// EnqueueSweep schedules a stalest-first sweep refresh.
func (c *Client) EnqueueSweep(ctx context.Context, limit int) error {
	payload := &RefreshPayload{Limit: limit, Source: "sweep"}
	payloadBytes, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal sweep payload: %w", err)
	}

	task := asynq.NewTask(TypeRefreshSnapshots, payloadBytes)

	if _, err := c.asynqClient.EnqueueContext(ctx, task,
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	); err != nil {
		return fmt.Errorf("failed to enqueue sweep task: %w", err)
	}

	return nil
}

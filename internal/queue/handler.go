package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/provider"
	"github.com/creator-radar/video-signal-engine-go/internal/quota"
	"github.com/creator-radar/video-signal-engine-go/internal/signal"
)

const defaultSweepLimit = 200

// RefreshHandler processes snapshot refresh tasks.
type RefreshHandler struct {
	providerClient   provider.Client
	videoRepo        repository.CompetitorVideoRepository
	snapshotRepo     repository.SnapshotRepository
	quotaTracker     quota.Tracker
	snapshotInterval time.Duration
	log              *zap.Logger
}

// NewRefreshHandler creates a refresh task handler.
func NewRefreshHandler(
	providerClient provider.Client,
	videoRepo repository.CompetitorVideoRepository,
	snapshotRepo repository.SnapshotRepository,
	quotaTracker quota.Tracker,
	snapshotInterval time.Duration,
	log *zap.Logger,
) *RefreshHandler {
	if snapshotInterval <= 0 {
		snapshotInterval = signal.SnapshotInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshHandler{
		providerClient:   providerClient,
		videoRepo:        videoRepo,
		snapshotRepo:     snapshotRepo,
		quotaTracker:     quotaTracker,
		snapshotInterval: snapshotInterval,
		log:              log,
	}
}

// ProcessTask implements asynq.Handler.
func (h *RefreshHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := UnmarshalRefreshPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("unmarshal refresh payload: %w", err)
	}

	now := time.Now().UTC()

	stale, err := h.staleVideoIDs(ctx, now, payload)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		h.log.Debug("no stale videos to refresh", zap.String("source", payload.Source))
		return nil
	}

	// One videos.list unit per 50-id chunk.
	estimate := (len(stale) + 49) / 50
	available, err := h.quotaTracker.Available(ctx, estimate)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	if !available {
		// Returning an error lets asynq retry once the quota day rolls over.
		return fmt.Errorf("quota threshold reached, deferring refresh of %d videos", len(stale))
	}

	stats, units, err := h.providerClient.FetchStatsBatch(ctx, stale)
	if recordErr := h.quotaTracker.RecordCall(ctx, quota.KindStatsList, units); recordErr != nil {
		h.log.Warn("record stats quota failed", zap.Error(recordErr))
	}
	if err != nil {
		return fmt.Errorf("fetch stats batch: %w", err)
	}

	batch := &repository.DiscoveryBatch{FetchedAt: now}
	for _, videoID := range stale {
		st, ok := stats[videoID]
		if !ok {
			continue
		}
		batch.Snapshots = append(batch.Snapshots, &models.Snapshot{
			VideoID:      videoID,
			CapturedAt:   now,
			ViewCount:    st.ViewCount,
			LikeCount:    st.LikeCount,
			CommentCount: st.CommentCount,
		})
		batch.TouchIDs = append(batch.TouchIDs, videoID)
	}

	if err := h.snapshotRepo.SaveDiscoveryBatch(ctx, batch); err != nil {
		return fmt.Errorf("save refresh batch: %w", err)
	}

	h.log.Info("snapshots refreshed",
		zap.Int("requested", len(stale)),
		zap.Int("captured", len(batch.Snapshots)),
		zap.String("source", payload.Source),
	)

	return nil
}

// staleVideoIDs resolves which videos actually need a poll. Targeted
// payloads are still filtered by the staleness rule so a task queued behind
// a dashboard visit does not double-poll.
func (h *RefreshHandler) staleVideoIDs(ctx context.Context, now time.Time, payload *RefreshPayload) ([]string, error) {
	if len(payload.VideoIDs) > 0 {
		var stale []string
		for _, videoID := range payload.VideoIDs {
			history, err := h.snapshotRepo.LatestSnapshots(ctx, videoID, 1)
			if err != nil {
				return nil, fmt.Errorf("load latest snapshot: %w", err)
			}
			if signal.NeedsSnapshot(now, history, h.snapshotInterval) {
				stale = append(stale, videoID)
			}
		}
		return stale, nil
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	videos, err := h.videoRepo.ListStale(ctx, now.Add(-h.snapshotInterval), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale videos: %w", err)
	}

	ids := make([]string, 0, len(videos))
	for _, video := range videos {
		ids = append(ids, video.VideoID)
	}
	return ids, nil
}

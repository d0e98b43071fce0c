package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creator-radar/video-signal-engine-go/internal/db"
	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
)

// SnapshotRepository defines operations on the append-only snapshot store.
type SnapshotRepository interface {
	// LatestSnapshots retrieves at most n snapshots for a video,
	// most-recent-first.
	LatestSnapshots(ctx context.Context, videoID string, n int) ([]*models.Snapshot, error)

	// AppendSnapshot writes one snapshot. A duplicate (video_id, captured_at)
	// pair is silently dropped, not errored.
	AppendSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// SaveDiscoveryBatch commits a discovery batch as a unit: registry
	// upserts, snapshot appends, and last-fetched touch updates either all
	// apply or none do.
	SaveDiscoveryBatch(ctx context.Context, batch *DiscoveryBatch) error
}

// DiscoveryBatch is the write set produced by one snapshot-refresh step.
type DiscoveryBatch struct {
	Videos    []*models.CompetitorVideo
	Snapshots []*models.Snapshot
	TouchIDs  []string
	FetchedAt time.Time
}

// Empty reports whether the batch carries no writes at all.
func (b *DiscoveryBatch) Empty() bool {
	return len(b.Videos) == 0 && len(b.Snapshots) == 0 && len(b.TouchIDs) == 0
}

type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepository{pool: pool}
}

const appendSnapshotQuery = `
	INSERT INTO video_snapshots (video_id, captured_at, view_count, like_count, comment_count)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (video_id, captured_at) DO NOTHING
`

func (r *snapshotRepository) LatestSnapshots(ctx context.Context, videoID string, n int) ([]*models.Snapshot, error) {
	query := `
		SELECT video_id, captured_at, view_count, like_count, comment_count
		FROM video_snapshots
		WHERE video_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, videoID, n)
	if err != nil {
		return nil, db.WrapError(err, "latest snapshots")
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		snap := &models.Snapshot{}
		err := rows.Scan(
			&snap.VideoID,
			&snap.CapturedAt,
			&snap.ViewCount,
			&snap.LikeCount,
			&snap.CommentCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}

func (r *snapshotRepository) AppendSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	_, err := r.pool.Exec(ctx, appendSnapshotQuery,
		snapshot.VideoID,
		snapshot.CapturedAt,
		snapshot.ViewCount,
		snapshot.LikeCount,
		snapshot.CommentCount,
	)
	if err != nil {
		return db.WrapError(err, "append snapshot")
	}

	return nil
}

func (r *snapshotRepository) SaveDiscoveryBatch(ctx context.Context, batch *DiscoveryBatch) error {
	if batch.Empty() {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin discovery batch: %w", db.ErrTransaction)
	}
	defer tx.Rollback(ctx) // Rollback is safe to call even if committed

	for _, video := range batch.Videos {
		_, err := tx.Exec(ctx, `
			INSERT INTO competitor_videos
				(video_id, channel_id, channel_title, title, thumbnail_url, published_at, last_fetched_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (video_id) DO UPDATE
			SET channel_title = EXCLUDED.channel_title,
			    title = EXCLUDED.title,
			    thumbnail_url = EXCLUDED.thumbnail_url,
			    last_fetched_at = EXCLUDED.last_fetched_at,
			    updated_at = EXCLUDED.updated_at
		`,
			video.VideoID,
			video.ChannelID,
			video.ChannelTitle,
			video.Title,
			video.ThumbnailURL,
			video.PublishedAt,
			video.LastFetchedAt,
			video.CreatedAt,
			video.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("batch upsert video %s: %v: %w", video.VideoID, err, db.ErrTransaction)
		}
	}

	for _, snap := range batch.Snapshots {
		_, err := tx.Exec(ctx, appendSnapshotQuery,
			snap.VideoID,
			snap.CapturedAt,
			snap.ViewCount,
			snap.LikeCount,
			snap.CommentCount,
		)
		if err != nil {
			return fmt.Errorf("batch append snapshot %s: %v: %w", snap.VideoID, err, db.ErrTransaction)
		}
	}

	if len(batch.TouchIDs) > 0 {
		_, err := tx.Exec(ctx, `
			UPDATE competitor_videos
			SET last_fetched_at = $1, updated_at = $1
			WHERE video_id = ANY($2)
		`, batch.FetchedAt, batch.TouchIDs)
		if err != nil {
			return fmt.Errorf("batch touch last fetched: %v: %w", err, db.ErrTransaction)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit discovery batch: %v: %w", err, db.ErrTransaction)
	}

	return nil
}

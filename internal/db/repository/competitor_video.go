// Package repository contains the data access layer.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creator-radar/video-signal-engine-go/internal/db"
	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
)

// CompetitorVideoRepository defines operations on the competitor registry.
type CompetitorVideoRepository interface {
	// UpsertVideo inserts a registry record or refreshes its identity fields.
	// published_at is written once on insert and never overwritten.
	UpsertVideo(ctx context.Context, video *models.CompetitorVideo) error

	// GetVideoByID retrieves a single registry record.
	GetVideoByID(ctx context.Context, videoID string) (*models.CompetitorVideo, error)

	// ListStale retrieves registry records whose last stats poll is older
	// than the given cutoff, oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.CompetitorVideo, error)

	// TouchLastFetched updates last_fetched_at for a set of videos.
	TouchLastFetched(ctx context.Context, videoIDs []string, at time.Time) error
}

type competitorVideoRepository struct {
	pool *pgxpool.Pool
}

// NewCompetitorVideoRepository creates a new CompetitorVideoRepository.
func NewCompetitorVideoRepository(pool *pgxpool.Pool) CompetitorVideoRepository {
	return &competitorVideoRepository{pool: pool}
}

const upsertVideoQuery = `
	INSERT INTO competitor_videos
		(video_id, channel_id, channel_title, title, thumbnail_url, published_at, last_fetched_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (video_id) DO UPDATE
	SET channel_title = EXCLUDED.channel_title,
	    title = EXCLUDED.title,
	    thumbnail_url = EXCLUDED.thumbnail_url,
	    last_fetched_at = EXCLUDED.last_fetched_at,
	    updated_at = EXCLUDED.updated_at
	RETURNING published_at, created_at, updated_at
`

func (r *competitorVideoRepository) UpsertVideo(ctx context.Context, video *models.CompetitorVideo) error {
	err := r.pool.QueryRow(ctx, upsertVideoQuery,
		video.VideoID,
		video.ChannelID,
		video.ChannelTitle,
		video.Title,
		video.ThumbnailURL,
		video.PublishedAt,
		video.LastFetchedAt,
		video.CreatedAt,
		video.UpdatedAt,
	).Scan(
		&video.PublishedAt,
		&video.CreatedAt,
		&video.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "upsert competitor video")
	}

	return nil
}

func (r *competitorVideoRepository) GetVideoByID(ctx context.Context, videoID string) (*models.CompetitorVideo, error) {
	query := `
		SELECT video_id, channel_id, channel_title, title, thumbnail_url, published_at, last_fetched_at, created_at, updated_at
		FROM competitor_videos
		WHERE video_id = $1
	`

	video := &models.CompetitorVideo{}
	err := r.pool.QueryRow(ctx, query, videoID).Scan(
		&video.VideoID,
		&video.ChannelID,
		&video.ChannelTitle,
		&video.Title,
		&video.ThumbnailURL,
		&video.PublishedAt,
		&video.LastFetchedAt,
		&video.CreatedAt,
		&video.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get competitor video by id")
	}

	return video, nil
}

func (r *competitorVideoRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.CompetitorVideo, error) {
	query := `
		SELECT video_id, channel_id, channel_title, title, thumbnail_url, published_at, last_fetched_at, created_at, updated_at
		FROM competitor_videos
		WHERE last_fetched_at < $1
		ORDER BY last_fetched_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, db.WrapError(err, "list stale competitor videos")
	}
	defer rows.Close()

	return scanCompetitorVideos(rows)
}

func (r *competitorVideoRepository) TouchLastFetched(ctx context.Context, videoIDs []string, at time.Time) error {
	if len(videoIDs) == 0 {
		return nil
	}

	query := `
		UPDATE competitor_videos
		SET last_fetched_at = $1, updated_at = $1
		WHERE video_id = ANY($2)
	`

	if _, err := r.pool.Exec(ctx, query, at, videoIDs); err != nil {
		return db.WrapError(err, "touch last fetched")
	}

	return nil
}

func scanCompetitorVideos(rows pgx.Rows) ([]*models.CompetitorVideo, error) {
	var videos []*models.CompetitorVideo

	for rows.Next() {
		video := &models.CompetitorVideo{}
		err := rows.Scan(
			&video.VideoID,
			&video.ChannelID,
			&video.ChannelTitle,
			&video.Title,
			&video.ThumbnailURL,
			&video.PublishedAt,
			&video.LastFetchedAt,
			&video.CreatedAt,
			&video.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan competitor video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitor videos: %w", err)
	}

	return videos, nil
}

package models

import "time"

// Snapshot is one point-in-time measurement of a video's public statistics.
// Immutable once written. Like and comment counts are nullable: the provider
// hides them when a creator disables public counts.
type Snapshot struct {
	VideoID      string    `db:"video_id"`
	CapturedAt   time.Time `db:"captured_at"`
	ViewCount    int64     `db:"view_count"`
	LikeCount    *int64    `db:"like_count"`
	CommentCount *int64    `db:"comment_count"`
}

// NewSnapshot creates a snapshot captured now.
func NewSnapshot(videoID string, viewCount int64, likeCount, commentCount *int64) *Snapshot {
	return &Snapshot{
		VideoID:      videoID,
		CapturedAt:   time.Now().UTC(),
		ViewCount:    viewCount,
		LikeCount:    likeCount,
		CommentCount: commentCount,
	}
}

// Age reports how long ago the snapshot was captured relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

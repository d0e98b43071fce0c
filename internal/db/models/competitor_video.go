// Package models contains the persistent record types.
package models

import "time"

// CompetitorVideo is the registry record for a video discovered as a
// competitor signal. Created on first discovery and never deleted; identity
// fields may be refreshed on re-poll but published_at is set once.
type CompetitorVideo struct {
	VideoID       string    `db:"video_id"`
	ChannelID     string    `db:"channel_id"`
	ChannelTitle  string    `db:"channel_title"`
	Title         string    `db:"title"`
	ThumbnailURL  string    `db:"thumbnail_url"`
	PublishedAt   time.Time `db:"published_at"`
	LastFetchedAt time.Time `db:"last_fetched_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// NewCompetitorVideo creates a registry record for a freshly discovered video.
func NewCompetitorVideo(videoID, channelID, channelTitle, title, thumbnailURL string, publishedAt time.Time) *CompetitorVideo {
	now := time.Now().UTC()
	return &CompetitorVideo{
		VideoID:       videoID,
		ChannelID:     channelID,
		ChannelTitle:  channelTitle,
		Title:         title,
		ThumbnailURL:  thumbnailURL,
		PublishedAt:   publishedAt,
		LastFetchedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

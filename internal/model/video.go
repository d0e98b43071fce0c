// Package model contains the domain value types shared across the
// discovery pipeline.
package model

import "time"

// Stats is the public statistics block of a video. Like and comment counts
// are nil when the creator hides them.
type Stats struct {
	ViewCount    int64  `json:"viewCount"`
	LikeCount    *int64 `json:"likeCount,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty"`
}

// CandidateVideo is the immutable identity of a video returned by provider
// search. It carries no statistics; those are attached from the latest
// snapshot at assembly time.
type CandidateVideo struct {
	VideoID      string    `json:"videoId"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// AgeDays reports the video's age in fractional days, floored at one day so
// a video published minutes ago does not produce an absurd views-per-day.
func (v CandidateVideo) AgeDays(now time.Time) float64 {
	days := now.Sub(v.PublishedAt).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// Package feed joins discovery output with derived metrics and applies the
// requested sort order.
package feed

import (
	"sort"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
)

// Sort is a feed ordering.
type Sort string

const (
	SortVelocity   Sort = "velocity"
	SortEngagement Sort = "engagement"
	SortNewest     Sort = "newest"
	SortOutliers   Sort = "outliers"
)

// ParseSort maps a request parameter to a Sort, defaulting to velocity.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortEngagement, SortNewest, SortOutliers:
		return Sort(s)
	default:
		return SortVelocity
	}
}

// Join builds feed entries from raw candidates and their per-video stats and
// signals, preserving input order. Candidates with no stats (never
// successfully polled, e.g. removed upstream between search and stats fetch)
// are dropped: they cannot carry a stats block.
func Join(raw []model.CandidateVideo, stats map[string]model.Stats, signals map[string]model.VideoSignals) []*model.FeedVideo {
	videos := make([]*model.FeedVideo, 0, len(raw))
	for _, candidate := range raw {
		st, ok := stats[candidate.VideoID]
		if !ok {
			continue
		}
		videos = append(videos, &model.FeedVideo{
			CandidateVideo: candidate,
			Stats:          st,
			Derived:        signals[candidate.VideoID],
		})
	}
	return videos
}

// SortVideos orders videos in place. The sort is stable: equal primary
// values retain their relative input order, there is no secondary key.
func SortVideos(videos []*model.FeedVideo, order Sort) {
	var key func(*model.FeedVideo) float64

	switch order {
	case SortEngagement:
		key = func(v *model.FeedVideo) float64 {
			if v.Derived.EngagementPerView == nil {
				return 0
			}
			return *v.Derived.EngagementPerView
		}
	case SortNewest:
		sort.SliceStable(videos, func(i, j int) bool {
			return videos[i].PublishedAt.After(videos[j].PublishedAt)
		})
		return
	case SortOutliers:
		key = func(v *model.FeedVideo) float64 {
			if v.Derived.OutlierScore == nil {
				return 0
			}
			return *v.Derived.OutlierScore
		}
	default: // velocity
		key = func(v *model.FeedVideo) float64 {
			if v.Derived.Velocity24h != nil {
				return float64(*v.Derived.Velocity24h)
			}
			return v.Derived.ViewsPerDay
		}
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return key(videos[i]) > key(videos[j])
	})
}

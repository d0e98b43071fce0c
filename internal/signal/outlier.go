package signal

import (
	"math"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
)

// minCohortSize is the smallest cohort for which z-scores are meaningful.
const minCohortSize = 3

// ScoreOutliers assigns each video a population z-score of its signal value
// relative to the cohort. The signal is velocity24h when defined, else
// viewsPerDay. Cohorts smaller than three videos, or with zero variance,
// receive no scores.
//
// This is a same-batch relative ranking: "stood out among what we just
// fetched", not a historical baseline.
func ScoreOutliers(videos []*model.FeedVideo) {
	if len(videos) < minCohortSize {
		return
	}

	values := make([]float64, len(videos))
	for i, video := range videos {
		values[i] = signalValue(video)
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return
	}

	for i, video := range videos {
		score := (values[i] - mean) / stdDev
		video.Derived.OutlierScore = &score
	}
}

func signalValue(video *model.FeedVideo) float64 {
	if video.Derived.Velocity24h != nil {
		return float64(*video.Derived.Velocity24h)
	}
	return video.Derived.ViewsPerDay
}

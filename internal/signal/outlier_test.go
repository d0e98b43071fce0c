package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
)

func videoWithVelocity(id string, velocity int64) *model.FeedVideo {
	return &model.FeedVideo{
		CandidateVideo: model.CandidateVideo{VideoID: id},
		Derived: model.VideoSignals{
			DerivedMetrics: model.DerivedMetrics{Velocity24h: &velocity},
		},
	}
}

func TestScoreOutliers_CohortTooSmall(t *testing.T) {
	videos := []*model.FeedVideo{
		videoWithVelocity("a", 100),
		videoWithVelocity("b", 9000),
	}

	ScoreOutliers(videos)

	for _, v := range videos {
		assert.Nil(t, v.Derived.OutlierScore)
	}
}

func TestScoreOutliers_ZeroVariance(t *testing.T) {
	videos := []*model.FeedVideo{
		videoWithVelocity("a", 500),
		videoWithVelocity("b", 500),
		videoWithVelocity("c", 500),
	}

	ScoreOutliers(videos)

	for _, v := range videos {
		assert.Nil(t, v.Derived.OutlierScore)
	}
}

func TestScoreOutliers_ScoresRelativeToCohort(t *testing.T) {
	videos := []*model.FeedVideo{
		videoWithVelocity("a", 100),
		videoWithVelocity("b", 110),
		videoWithVelocity("c", 90),
		videoWithVelocity("d", 105),
		videoWithVelocity("e", 5000),
	}

	ScoreOutliers(videos)

	var scoreSum float64
	for _, v := range videos {
		require.NotNil(t, v.Derived.OutlierScore, "video %s", v.VideoID)
		scoreSum += *v.Derived.OutlierScore
	}

	// z-scores over a population sum to zero
	assert.InDelta(t, 0, scoreSum, 1e-9)

	// The runaway video must score highest and clearly above the pack.
	assert.Greater(t, *videos[4].Derived.OutlierScore, 1.5)
	for _, v := range videos[:4] {
		assert.Less(t, *v.Derived.OutlierScore, *videos[4].Derived.OutlierScore)
	}
}

func TestScoreOutliers_FallsBackToViewsPerDay(t *testing.T) {
	noVelocity := func(id string, viewsPerDay float64) *model.FeedVideo {
		return &model.FeedVideo{
			CandidateVideo: model.CandidateVideo{VideoID: id},
			Derived: model.VideoSignals{
				DerivedMetrics: model.DerivedMetrics{ViewsPerDay: viewsPerDay},
			},
		}
	}

	videos := []*model.FeedVideo{
		noVelocity("a", 10),
		noVelocity("b", 20),
		noVelocity("c", 300),
	}

	ScoreOutliers(videos)

	for _, v := range videos {
		require.NotNil(t, v.Derived.OutlierScore)
	}
	assert.Greater(t, *videos[2].Derived.OutlierScore, *videos[0].Derived.OutlierScore)
}

// Package signal derives time-series metrics from snapshot history and
// scores cohort outliers. Everything here is pure computation; no I/O.
package signal

import (
	"time"

	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
	"github.com/creator-radar/video-signal-engine-go/internal/model"
)

// SnapshotInterval is how old a video's most recent snapshot may be before
// it needs a fresh stats poll.
const SnapshotInterval = 6 * time.Hour

// Anchor bands. Polling is not guaranteed to land on exact window
// boundaries, so each nominal mark carries a tolerance band.
const (
	velocity24hMinAge = 20 * time.Hour
	velocity24hMaxAge = 28 * time.Hour

	velocity7dMinAge = 6 * 24 * time.Hour
	velocity7dMaxAge = 8 * 24 * time.Hour

	previous24hMinAge = 44 * time.Hour
	previous24hMaxAge = 52 * time.Hour
)

// Derive computes windowed rate metrics from a video's snapshot history.
// snapshots must be ordered most-recent-first. fallbackViewsPerDay is the
// coarse lifetime estimate used when no history exists; it is carried
// through unchanged either way so consumers always have it.
func Derive(now time.Time, snapshots []*models.Snapshot, fallbackViewsPerDay float64) model.DerivedMetrics {
	metrics := model.DerivedMetrics{
		ViewsPerDay: fallbackViewsPerDay,
		DataStatus:  model.DataStatusBuilding,
	}

	if len(snapshots) == 0 {
		return metrics
	}

	latest := snapshots[0]

	if latest.LikeCount != nil && latest.CommentCount != nil && latest.ViewCount > 0 {
		engagement := float64(*latest.LikeCount+*latest.CommentCount) / float64(latest.ViewCount)
		metrics.EngagementPerView = &engagement
	}

	anchor24 := snapshotInBand(now, snapshots, velocity24hMinAge, velocity24hMaxAge)
	if anchor24 != nil {
		// A negative delta means an upstream data correction, not an error.
		v := latest.ViewCount - anchor24.ViewCount
		metrics.Velocity24h = &v
	}

	if anchor7d := snapshotInBand(now, snapshots, velocity7dMinAge, velocity7dMaxAge); anchor7d != nil {
		v := latest.ViewCount - anchor7d.ViewCount
		metrics.Velocity7d = &v
	}

	if len(snapshots) >= 3 && anchor24 != nil {
		if anchor48 := snapshotInBand(now, snapshots, previous24hMinAge, previous24hMaxAge); anchor48 != nil {
			previous := anchor24.ViewCount - anchor48.ViewCount
			accel := *metrics.Velocity24h - previous
			metrics.Acceleration24h = &accel
		}
	}

	if metrics.Velocity24h != nil || metrics.Velocity7d != nil {
		metrics.DataStatus = model.DataStatusReady
	}

	return metrics
}

// NeedsSnapshot reports whether a video is due for a fresh stats poll:
// no history at all, or the most recent snapshot is older than the interval.
func NeedsSnapshot(now time.Time, snapshots []*models.Snapshot, interval time.Duration) bool {
	if len(snapshots) == 0 {
		return true
	}
	return snapshots[0].Age(now) > interval
}

// snapshotInBand returns the first snapshot, in descending order, whose age
// falls inside [minAge, maxAge]. First match, not closest-by-difference;
// this mirrors how the windows were originally defined.
func snapshotInBand(now time.Time, snapshots []*models.Snapshot, minAge, maxAge time.Duration) *models.Snapshot {
	for _, snap := range snapshots {
		age := snap.Age(now)
		if age >= minAge && age <= maxAge {
			return snap
		}
	}
	return nil
}

package model

import "time"

// DataStatus tells consumers whether the windowed rate metrics can be
// trusted or whether only the coarse viewsPerDay estimate is available.
type DataStatus string

const (
	DataStatusReady    DataStatus = "ready"
	DataStatusBuilding DataStatus = "building"
)

// DerivedMetrics is the output of snapshot-history derivation. Optional
// fields are nil when the history lacks the required anchor snapshots.
type DerivedMetrics struct {
	ViewsPerDay       float64    `json:"viewsPerDay"`
	Velocity24h       *int64     `json:"velocity24h,omitempty"`
	Velocity7d        *int64     `json:"velocity7d,omitempty"`
	Acceleration24h   *int64     `json:"acceleration24h,omitempty"`
	EngagementPerView *float64   `json:"engagementPerView,omitempty"`
	DataStatus        DataStatus `json:"dataStatus"`
}

// VideoSignals is DerivedMetrics plus the cohort-relative outlier score.
// OutlierScore stays nil when the cohort was too small or had zero variance.
type VideoSignals struct {
	DerivedMetrics
	OutlierScore *float64 `json:"outlierScore,omitempty"`
}

// FeedVideo is one assembled feed entry.
type FeedVideo struct {
	CandidateVideo
	Stats   Stats        `json:"stats"`
	Derived VideoSignals `json:"derived"`
}

// PageStatus distinguishes a normal page from the expected empty page a
// channel gets before its niche has been inferred.
type PageStatus string

const (
	PageStatusOK           PageStatus = "ok"
	PageStatusNichePending PageStatus = "niche_pending"
)

// FeedPage is the paginated response envelope.
type FeedPage struct {
	Videos                []*FeedVideo `json:"videos"`
	Status                PageStatus   `json:"status"`
	CurrentQueryIndex     int          `json:"currentQueryIndex"`
	NextQueryIndex        *int         `json:"nextQueryIndex,omitempty"`
	NextUpstreamPageToken string       `json:"nextUpstreamPageToken,omitempty"`
	HasMorePages          bool         `json:"hasMorePages"`
	GeneratedAt           time.Time    `json:"generatedAt"`
	CachedUntil           *time.Time   `json:"cachedUntil,omitempty"`
}

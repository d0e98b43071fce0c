// Package discovery orchestrates one competitor discovery request: cache
// check, provider query, result merge, snapshot refresh, cache write.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/cache"
	"github.com/creator-radar/video-signal-engine-go/internal/config"
	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/feed"
	"github.com/creator-radar/video-signal-engine-go/internal/model"
	"github.com/creator-radar/video-signal-engine-go/internal/provider"
	"github.com/creator-radar/video-signal-engine-go/internal/quota"
	"github.com/creator-radar/video-signal-engine-go/internal/signal"
)

// Niche is the ordered list of search phrases for a channel's inferred
// content niche. Supplied by the niche-inference collaborator, read-only.
type Niche struct {
	Queries []string
}

// Request is one discovery request. Channel ownership and authorization are
// the caller's responsibility; ChannelID is trusted and excluded from the
// result set.
type Request struct {
	TenantID  string
	ChannelID string
	Niche     Niche
	Cursor    Cursor
	Sort      feed.Sort
}

// RefreshEnqueuer schedules background snapshot refreshes. Satisfied by the
// queue client; optional so the service also runs queue-less.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, videoIDs []string, delay time.Duration, source string) error
}

// Service runs the discovery state machine.
type Service struct {
	provider     provider.Client
	snapshots    repository.SnapshotRepository
	cache        cache.FeedCache
	quota        quota.Tracker
	refreshQueue RefreshEnqueuer
	cfg          config.DiscoveryConfig
	log          *zap.Logger
	now          func() time.Time
}

// NewService creates a discovery Service.
func NewService(
	providerClient provider.Client,
	snapshotRepo repository.SnapshotRepository,
	feedCache cache.FeedCache,
	quotaTracker quota.Tracker,
	cfg config.DiscoveryConfig,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		provider:  providerClient,
		snapshots: snapshotRepo,
		cache:     feedCache,
		quota:     quotaTracker,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetRefreshQueue enables background re-polling: after an uncached
// discovery the page's videos are scheduled for their next snapshot one
// interval out.
func (s *Service) SetRefreshQueue(q RefreshEnqueuer) {
	s.refreshQueue = q
}

// Discover runs one discovery request end to end and returns an assembled
// feed page. Every returned page reflects either fully-cached or
// fully-freshly-fetched-and-persisted state; the snapshot batch commits as a
// unit before the page is built.
func (s *Service) Discover(ctx context.Context, req Request) (*model.FeedPage, error) {
	now := s.now()

	// "Niche not yet determined" is an expected transient state for new
	// channels, not an error.
	if len(req.Niche.Queries) == 0 {
		return &model.FeedPage{
			Videos:      []*model.FeedVideo{},
			Status:      model.PageStatusNichePending,
			GeneratedAt: now,
		}, nil
	}

	if req.Cursor.QueryIndex >= len(req.Niche.Queries) {
		return nil, fmt.Errorf("cursor query index %d out of range (niche has %d queries)",
			req.Cursor.QueryIndex, len(req.Niche.Queries))
	}

	raw, nextPageToken, cachedUntil, fromCache, err := s.rawVideos(ctx, req)
	if err != nil {
		return nil, err
	}

	histories, err := s.refreshSnapshots(ctx, now, raw, fromCache)
	if err != nil {
		return nil, err
	}

	if !fromCache && req.Cursor.CacheEligible() {
		entry, err := s.cache.Set(ctx, req.TenantID, req.ChannelID, s.rangeBucket(), raw, nextPageToken, s.cfg.CacheTTL)
		if err != nil {
			// Cache write-back failure degrades quota efficiency, not
			// correctness.
			s.log.Warn("feed cache write failed", zap.Error(err))
		} else {
			cachedUntil = &entry.CachedUntil
		}
	}

	videos := s.assemble(now, raw, histories, req.Sort)

	if !fromCache && s.refreshQueue != nil && len(raw) > 0 {
		ids := make([]string, 0, len(raw))
		for _, video := range raw {
			ids = append(ids, video.VideoID)
		}
		if err := s.refreshQueue.EnqueueRefresh(ctx, ids, s.cfg.SnapshotInterval, "discovery"); err != nil {
			// Best effort; the next dashboard visit or sweep catches up.
			s.log.Warn("refresh enqueue failed", zap.Error(err))
		}
	}

	next, hasMore := advance(req.Cursor, nextPageToken, len(req.Niche.Queries))
	page := &model.FeedPage{
		Videos:            videos,
		Status:            model.PageStatusOK,
		CurrentQueryIndex: req.Cursor.QueryIndex,
		HasMorePages:      hasMore,
		GeneratedAt:       now,
		CachedUntil:       cachedUntil,
	}
	if next != nil {
		idx := next.QueryIndex
		page.NextQueryIndex = &idx
		page.NextUpstreamPageToken = next.PageToken
	}

	return page, nil
}

// rawVideos resolves the raw candidate list: from cache for the eligible
// first page, otherwise from the provider. The cache read always completes
// before any provider call for the same key.
func (s *Service) rawVideos(ctx context.Context, req Request) (raw []model.CandidateVideo, nextPageToken string, cachedUntil *time.Time, fromCache bool, err error) {
	if req.Cursor.CacheEligible() {
		entry, err := s.cache.Get(ctx, req.TenantID, req.ChannelID, s.rangeBucket())
		if err != nil {
			// A broken cache degrades to a provider fetch.
			s.log.Warn("feed cache read failed", zap.Error(err))
		} else if entry != nil {
			return entry.Videos, entry.NextPageToken, &entry.CachedUntil, true, nil
		}
	}

	available, err := s.quota.Available(ctx, searchEstimate)
	if err != nil {
		return nil, "", nil, false, fmt.Errorf("check quota: %w", err)
	}
	if !available {
		return nil, "", nil, false, &provider.Error{
			Kind: provider.KindQuotaExceeded,
			Op:   "search",
			Err:  fmt.Errorf("daily quota threshold reached"),
		}
	}

	page, units, err := s.provider.Search(ctx, provider.SearchParams{
		Query:          req.Niche.Queries[req.Cursor.QueryIndex],
		MaxResults:     int64(s.cfg.PageSize),
		PageToken:      req.Cursor.PageToken,
		DurationFilter: "any",
		WindowDays:     s.cfg.LookbackDays,
	})
	if recordErr := s.quota.RecordCall(ctx, quota.KindSearch, units); recordErr != nil {
		s.log.Warn("record search quota failed", zap.Error(recordErr))
	}
	if err != nil {
		return nil, "", nil, false, err
	}

	// Never treat the subject creator as their own competitor.
	raw = make([]model.CandidateVideo, 0, len(page.Videos))
	for _, video := range page.Videos {
		if video.ChannelID == req.ChannelID {
			continue
		}
		raw = append(raw, video)
	}

	return raw, page.NextPageToken, nil, false, nil
}

// searchEstimate is the unit cost assumed for the quota pre-check.
const searchEstimate = 100

// refreshSnapshots partitions the merged raw set into videos needing a fresh
// snapshot vs. not, batch-fetches stats only for the needing set, and
// commits registry and snapshot writes in a single transaction. Returns each
// video's snapshot history, most-recent-first, including the fresh one.
func (s *Service) refreshSnapshots(ctx context.Context, now time.Time, raw []model.CandidateVideo, fromCache bool) (map[string][]*models.Snapshot, error) {
	histories := make(map[string][]*models.Snapshot, len(raw))
	var stale []string

	for _, video := range raw {
		history, err := s.snapshots.LatestSnapshots(ctx, video.VideoID, s.cfg.SnapshotHistory)
		if err != nil {
			return nil, fmt.Errorf("load snapshot history: %w", err)
		}
		histories[video.VideoID] = history

		if signal.NeedsSnapshot(now, history, s.cfg.SnapshotInterval) {
			stale = append(stale, video.VideoID)
		}
	}

	var stats map[string]model.Stats
	if len(stale) > 0 {
		var units int
		var err error
		stats, units, err = s.provider.FetchStatsBatch(ctx, stale)
		if recordErr := s.quota.RecordCall(ctx, quota.KindStatsList, units); recordErr != nil {
			s.log.Warn("record stats quota failed", zap.Error(recordErr))
		}
		if err != nil {
			return nil, err
		}
	}

	batch := s.buildBatch(now, raw, stale, stats, fromCache)
	if err := s.snapshots.SaveDiscoveryBatch(ctx, batch); err != nil {
		return nil, err
	}

	// Fold the fresh snapshots into the histories so derivation sees them.
	for _, snap := range batch.Snapshots {
		histories[snap.VideoID] = append([]*models.Snapshot{snap}, histories[snap.VideoID]...)
	}

	return histories, nil
}

// buildBatch assembles the transactional write set. Uncached requests upsert
// every video's registry record (which also touches last_fetched_at);
// cache-served requests only append snapshots and touch the refreshed set.
func (s *Service) buildBatch(now time.Time, raw []model.CandidateVideo, stale []string, stats map[string]model.Stats, fromCache bool) *repository.DiscoveryBatch {
	batch := &repository.DiscoveryBatch{FetchedAt: now}

	staleSet := make(map[string]bool, len(stale))
	for _, id := range stale {
		staleSet[id] = true
	}

	for _, video := range raw {
		if !fromCache {
			record := models.NewCompetitorVideo(
				video.VideoID,
				video.ChannelID,
				video.ChannelTitle,
				video.Title,
				video.ThumbnailURL,
				video.PublishedAt,
			)
			record.LastFetchedAt = now
			batch.Videos = append(batch.Videos, record)
		}

		if !staleSet[video.VideoID] {
			continue
		}
		st, ok := stats[video.VideoID]
		if !ok {
			continue
		}

		batch.Snapshots = append(batch.Snapshots, &models.Snapshot{
			VideoID:      video.VideoID,
			CapturedAt:   now,
			ViewCount:    st.ViewCount,
			LikeCount:    st.LikeCount,
			CommentCount: st.CommentCount,
		})
		if fromCache {
			batch.TouchIDs = append(batch.TouchIDs, video.VideoID)
		}
	}

	return batch
}

// assemble derives metrics per video, scores the cohort, and sorts.
func (s *Service) assemble(now time.Time, raw []model.CandidateVideo, histories map[string][]*models.Snapshot, order feed.Sort) []*model.FeedVideo {
	stats := make(map[string]model.Stats, len(raw))
	signals := make(map[string]model.VideoSignals, len(raw))

	for _, video := range raw {
		history := histories[video.VideoID]
		if len(history) == 0 {
			continue
		}
		latest := history[0]

		stats[video.VideoID] = model.Stats{
			ViewCount:    latest.ViewCount,
			LikeCount:    latest.LikeCount,
			CommentCount: latest.CommentCount,
		}

		fallback := float64(latest.ViewCount) / video.AgeDays(now)
		signals[video.VideoID] = model.VideoSignals{
			DerivedMetrics: signal.Derive(now, history, fallback),
		}
	}

	videos := feed.Join(raw, stats, signals)
	signal.ScoreOutliers(videos)
	feed.SortVideos(videos, order)

	return videos
}

func (s *Service) rangeBucket() string {
	return fmt.Sprintf("%dd", s.cfg.LookbackDays)
}

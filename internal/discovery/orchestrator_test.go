package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/creator-radar/video-signal-engine-go/internal/cache"
	"github.com/creator-radar/video-signal-engine-go/internal/config"
	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/feed"
	"github.com/creator-radar/video-signal-engine-go/internal/model"
	"github.com/creator-radar/video-signal-engine-go/internal/provider"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Search(ctx context.Context, params provider.SearchParams) (*provider.SearchPage, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(*provider.SearchPage), args.Int(1), args.Error(2)
}

func (m *mockProvider) FetchStatsBatch(ctx context.Context, videoIDs []string) (map[string]model.Stats, int, error) {
	args := m.Called(ctx, videoIDs)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(map[string]model.Stats), args.Int(1), args.Error(2)
}

type mockSnapshotRepo struct {
	mock.Mock
}

func (m *mockSnapshotRepo) LatestSnapshots(ctx context.Context, videoID string, n int) ([]*models.Snapshot, error) {
	args := m.Called(ctx, videoID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Snapshot), args.Error(1)
}

func (m *mockSnapshotRepo) AppendSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *mockSnapshotRepo) SaveDiscoveryBatch(ctx context.Context, batch *repository.DiscoveryBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

type mockFeedCache struct {
	mock.Mock
}

func (m *mockFeedCache) Get(ctx context.Context, tenantID, channelID, rangeBucket string) (*cache.Entry, error) {
	args := m.Called(ctx, tenantID, channelID, rangeBucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.Entry), args.Error(1)
}

func (m *mockFeedCache) Set(ctx context.Context, tenantID, channelID, rangeBucket string, videos []model.CandidateVideo, nextPageToken string, ttl time.Duration) (*cache.Entry, error) {
	args := m.Called(ctx, tenantID, channelID, rangeBucket, videos, nextPageToken, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.Entry), args.Error(1)
}

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) RecordCall(ctx context.Context, kind string, estimatedUnits int) error {
	args := m.Called(ctx, kind, estimatedUnits)
	return args.Error(0)
}

func (m *mockTracker) Available(ctx context.Context, estimatedUnits int) (bool, error) {
	args := m.Called(ctx, estimatedUnits)
	return args.Bool(0), args.Error(1)
}

func testDiscoveryConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		PageSize:         50,
		LookbackDays:     90,
		SnapshotInterval: 6 * time.Hour,
		SnapshotHistory:  10,
		CacheTTL:         12 * time.Hour,
		CacheMaxAge:      24 * time.Hour,
	}
}

type fixture struct {
	provider  *mockProvider
	snapshots *mockSnapshotRepo
	cache     *mockFeedCache
	quota     *mockTracker
	service   *Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		provider:  new(mockProvider),
		snapshots: new(mockSnapshotRepo),
		cache:     new(mockFeedCache),
		quota:     new(mockTracker),
		now:       time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.provider, f.snapshots, f.cache, f.quota, testDiscoveryConfig(), nil)
	f.service.now = func() time.Time { return f.now }
	return f
}

func candidate(videoID, channelID string, published time.Time) model.CandidateVideo {
	return model.CandidateVideo{
		VideoID:     videoID,
		ChannelID:   channelID,
		PublishedAt: published,
	}
}

func baseRequest() Request {
	return Request{
		TenantID:  "tenant1",
		ChannelID: "UCown",
		Niche:     Niche{Queries: []string{"pour over coffee", "espresso recipes"}},
		Sort:      feed.SortVelocity,
	}
}

func TestDiscover_EmptyNiche(t *testing.T) {
	f := newFixture(t)

	req := baseRequest()
	req.Niche.Queries = nil

	page, err := f.service.Discover(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.PageStatusNichePending, page.Status)
	assert.Empty(t, page.Videos)
	assert.False(t, page.HasMorePages)
	f.provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestDiscover_CursorOutOfRange(t *testing.T) {
	f := newFixture(t)

	req := baseRequest()
	req.Cursor = Cursor{QueryIndex: 5}

	_, err := f.service.Discover(context.Background(), req)
	assert.Error(t, err)
}

func TestDiscover_FreshFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	published := f.now.Add(-48 * time.Hour)
	searchPage := &provider.SearchPage{
		Videos: []model.CandidateVideo{
			candidate("v1", "UCother", published),
			candidate("v2", "UCother2", published),
		},
		NextPageToken: "page2",
	}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.MatchedBy(func(p provider.SearchParams) bool {
		return p.Query == "pour over coffee" && p.WindowDays == 90 && p.MaxResults == 50
	})).Return(searchPage, 100, nil)
	f.quota.On("RecordCall", ctx, "search", 100).Return(nil)

	// No history on either video: both get polled.
	f.snapshots.On("LatestSnapshots", ctx, "v1", 10).Return(nil, nil)
	f.snapshots.On("LatestSnapshots", ctx, "v2", 10).Return(nil, nil)
	f.provider.On("FetchStatsBatch", ctx, []string{"v1", "v2"}).Return(map[string]model.Stats{
		"v1": {ViewCount: 1000},
		"v2": {ViewCount: 2000},
	}, 1, nil)
	f.quota.On("RecordCall", ctx, "stats_list", 1).Return(nil)

	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.MatchedBy(func(b *repository.DiscoveryBatch) bool {
		return len(b.Videos) == 2 && len(b.Snapshots) == 2 && len(b.TouchIDs) == 0
	})).Return(nil)

	cachedUntil := f.now.Add(12 * time.Hour)
	f.cache.On("Set", ctx, "tenant1", "UCown", "90d", searchPage.Videos, "page2", 12*time.Hour).
		Return(&cache.Entry{UpdatedAt: f.now, CachedUntil: cachedUntil, NextPageToken: "page2"}, nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, model.PageStatusOK, page.Status)
	require.Len(t, page.Videos, 2)
	assert.True(t, page.HasMorePages)
	require.NotNil(t, page.NextQueryIndex)
	assert.Equal(t, 0, *page.NextQueryIndex)
	assert.Equal(t, "page2", page.NextUpstreamPageToken)
	require.NotNil(t, page.CachedUntil)
	assert.Equal(t, cachedUntil, *page.CachedUntil)

	f.snapshots.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestDiscover_CacheHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	published := f.now.Add(-48 * time.Hour)
	cachedUntil := f.now.Add(3 * time.Hour)
	entry := &cache.Entry{
		Videos:        []model.CandidateVideo{candidate("v1", "UCother", published)},
		NextPageToken: "page2",
		UpdatedAt:     f.now.Add(-9 * time.Hour),
		CachedUntil:   cachedUntil,
	}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(entry, nil)

	// Fresh snapshot inside the interval: no stats fetch needed.
	f.snapshots.On("LatestSnapshots", ctx, "v1", 10).Return([]*models.Snapshot{
		{VideoID: "v1", CapturedAt: f.now.Add(-1 * time.Hour), ViewCount: 1500},
	}, nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	require.Len(t, page.Videos, 1)
	assert.Equal(t, int64(1500), page.Videos[0].Stats.ViewCount)
	assert.True(t, page.HasMorePages)
	assert.Equal(t, "page2", page.NextUpstreamPageToken)
	require.NotNil(t, page.CachedUntil)
	assert.Equal(t, cachedUntil, *page.CachedUntil)

	f.provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "FetchStatsBatch", mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDiscover_CacheHitRefreshesStaleSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	published := f.now.Add(-72 * time.Hour)
	entry := &cache.Entry{
		Videos:      []model.CandidateVideo{candidate("v1", "UCother", published)},
		UpdatedAt:   f.now.Add(-9 * time.Hour),
		CachedUntil: f.now.Add(3 * time.Hour),
	}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(entry, nil)

	f.snapshots.On("LatestSnapshots", ctx, "v1", 10).Return([]*models.Snapshot{
		{VideoID: "v1", CapturedAt: f.now.Add(-8 * time.Hour), ViewCount: 1000},
	}, nil)
	f.provider.On("FetchStatsBatch", ctx, []string{"v1"}).Return(map[string]model.Stats{
		"v1": {ViewCount: 1200},
	}, 1, nil)
	f.quota.On("RecordCall", ctx, "stats_list", 1).Return(nil)

	// Cache-served request: snapshot append plus a last-fetched touch, no
	// registry upserts.
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.MatchedBy(func(b *repository.DiscoveryBatch) bool {
		return len(b.Videos) == 0 && len(b.Snapshots) == 1 && len(b.TouchIDs) == 1
	})).Return(nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	require.Len(t, page.Videos, 1)
	assert.Equal(t, int64(1200), page.Videos[0].Stats.ViewCount)
	f.snapshots.AssertExpectations(t)
}

func TestDiscover_PaginatedCursorBypassesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()
	req.Cursor = Cursor{QueryIndex: 0, PageToken: "page2"}

	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.MatchedBy(func(p provider.SearchParams) bool {
		return p.PageToken == "page2"
	})).Return(&provider.SearchPage{}, 100, nil)
	f.quota.On("RecordCall", ctx, "search", 100).Return(nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	// Query 0 exhausted, query 1 remains.
	assert.True(t, page.HasMorePages)
	require.NotNil(t, page.NextQueryIndex)
	assert.Equal(t, 1, *page.NextQueryIndex)
	assert.Empty(t, page.NextUpstreamPageToken)

	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDiscover_LastQueryExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()
	req.Cursor = Cursor{QueryIndex: 1, PageToken: "lastpage"}

	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(&provider.SearchPage{}, 100, nil)
	f.quota.On("RecordCall", ctx, "search", 100).Return(nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	assert.False(t, page.HasMorePages)
	assert.Nil(t, page.NextQueryIndex)
	assert.Empty(t, page.NextUpstreamPageToken)
}

func TestDiscover_ExcludesOwnChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	published := f.now.Add(-48 * time.Hour)
	searchPage := &provider.SearchPage{
		Videos: []model.CandidateVideo{
			candidate("own1", "UCown", published),
			candidate("v1", "UCother", published),
		},
	}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(searchPage, 100, nil)
	f.quota.On("RecordCall", ctx, mock.Anything, mock.Anything).Return(nil)

	f.snapshots.On("LatestSnapshots", ctx, "v1", 10).Return(nil, nil)
	f.provider.On("FetchStatsBatch", ctx, []string{"v1"}).Return(map[string]model.Stats{
		"v1": {ViewCount: 500},
	}, 1, nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)
	f.cache.On("Set", ctx, "tenant1", "UCown", "90d", mock.Anything, "", 12*time.Hour).
		Return(&cache.Entry{CachedUntil: f.now.Add(12 * time.Hour)}, nil)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)

	require.Len(t, page.Videos, 1)
	assert.Equal(t, "v1", page.Videos[0].VideoID)
	f.snapshots.AssertNotCalled(t, "LatestSnapshots", ctx, "own1", 10)
}

func TestDiscover_QuotaExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(false, nil)

	_, err := f.service.Discover(ctx, req)
	require.Error(t, err)
	assert.True(t, provider.IsQuotaExceeded(err))
	f.provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestDiscover_CacheReadFailureDegradesToProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, assert.AnError)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(&provider.SearchPage{}, 100, nil)
	f.quota.On("RecordCall", ctx, "search", 100).Return(nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)
	f.cache.On("Set", ctx, "tenant1", "UCown", "90d", mock.Anything, "", 12*time.Hour).
		Return(&cache.Entry{CachedUntil: f.now.Add(12 * time.Hour)}, nil)

	_, err := f.service.Discover(ctx, req)
	require.NoError(t, err)
	f.provider.AssertExpectations(t)
}

func TestDiscover_CacheWriteFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(&provider.SearchPage{}, 100, nil)
	f.quota.On("RecordCall", ctx, "search", 100).Return(nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)
	f.cache.On("Set", ctx, "tenant1", "UCown", "90d", mock.Anything, "", 12*time.Hour).
		Return(nil, assert.AnError)

	page, err := f.service.Discover(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, page.CachedUntil)
}

func TestDiscover_ProviderErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	provErr := &provider.Error{Kind: provider.KindTransient, Op: "search", Err: assert.AnError}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(nil, 0, provErr)
	f.quota.On("RecordCall", ctx, "search", 0).Return(nil)

	_, err := f.service.Discover(ctx, req)
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueRefresh(ctx context.Context, videoIDs []string, delay time.Duration, source string) error {
	args := m.Called(ctx, videoIDs, delay, source)
	return args.Error(0)
}

func TestDiscover_SchedulesBackgroundRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := baseRequest()

	enqueuer := new(mockEnqueuer)
	f.service.SetRefreshQueue(enqueuer)

	published := f.now.Add(-48 * time.Hour)
	searchPage := &provider.SearchPage{
		Videos: []model.CandidateVideo{candidate("v1", "UCother", published)},
	}

	f.cache.On("Get", ctx, "tenant1", "UCown", "90d").Return(nil, nil)
	f.quota.On("Available", ctx, 100).Return(true, nil)
	f.provider.On("Search", ctx, mock.Anything).Return(searchPage, 100, nil)
	f.quota.On("RecordCall", ctx, mock.Anything, mock.Anything).Return(nil)
	f.snapshots.On("LatestSnapshots", ctx, "v1", 10).Return(nil, nil)
	f.provider.On("FetchStatsBatch", ctx, []string{"v1"}).Return(map[string]model.Stats{"v1": {ViewCount: 10}}, 1, nil)
	f.snapshots.On("SaveDiscoveryBatch", ctx, mock.Anything).Return(nil)
	f.cache.On("Set", ctx, "tenant1", "UCown", "90d", mock.Anything, "", 12*time.Hour).
		Return(&cache.Entry{CachedUntil: f.now.Add(12 * time.Hour)}, nil)

	enqueuer.On("EnqueueRefresh", ctx, []string{"v1"}, 6*time.Hour, "discovery").Return(nil)

	_, err := f.service.Discover(ctx, req)
	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
}

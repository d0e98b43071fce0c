// Package cache implements the redis-backed feed cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
	"github.com/creator-radar/video-signal-engine-go/internal/observability"
)

// Entry is one cached raw discovery result set. Pre-metric: derivation and
// scoring always run fresh on top of it.
type Entry struct {
	Videos        []model.CandidateVideo `json:"videos"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	CachedUntil   time.Time              `json:"cachedUntil"`
}

// Fresh reports whether the entry may be served. An entry past its TTL is
// stale, and an entry older than maxAge is stale even inside its TTL: the
// TTL can be set generously for quota conservation while staleness keeps a
// hard ceiling.
func (e *Entry) Fresh(now time.Time, maxAge time.Duration) bool {
	if now.After(e.CachedUntil) {
		return false
	}
	return now.Sub(e.UpdatedAt) <= maxAge
}

// FeedCache stores raw discovery results per (tenant, channel, range bucket).
type FeedCache interface {
	// Get returns the cached entry, or nil on a miss. Entries rejected by
	// the staleness ceiling count as misses.
	Get(ctx context.Context, tenantID, channelID, rangeBucket string) (*Entry, error)

	// Set writes an entry with the given TTL. Concurrent writers for the
	// same key are last-write-wins: entries are idempotent snapshots of
	// "videos matching this niche query page", not counters, so no
	// compare-and-swap is needed.
	Set(ctx context.Context, tenantID, channelID, rangeBucket string, videos []model.CandidateVideo, nextPageToken string, ttl time.Duration) (*Entry, error)
}

type redisFeedCache struct {
	client *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

// NewFeedCache creates a redis-backed FeedCache with the given staleness
// ceiling.
func NewFeedCache(client *redis.Client, maxAge time.Duration) FeedCache {
	return &redisFeedCache{
		client: client,
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(tenantID, channelID, rangeBucket string) string {
	return fmt.Sprintf("feedcache:%s:%s:%s", tenantID, channelID, rangeBucket)
}

func (c *redisFeedCache) Get(ctx context.Context, tenantID, channelID, rangeBucket string) (*Entry, error) {
	payload, err := c.client.Get(ctx, cacheKey(tenantID, channelID, rangeBucket)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feed cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		// A corrupt entry is a miss, not a failure.
		observability.CacheMisses.Inc()
		return nil, nil
	}

	if !entry.Fresh(c.now(), c.maxAge) {
		observability.CacheMisses.Inc()
		return nil, nil
	}

	observability.CacheHits.Inc()
	return &entry, nil
}

func (c *redisFeedCache) Set(ctx context.Context, tenantID, channelID, rangeBucket string, videos []model.CandidateVideo, nextPageToken string, ttl time.Duration) (*Entry, error) {
	now := c.now()
	entry := &Entry{
		Videos:        videos,
		NextPageToken: nextPageToken,
		UpdatedAt:     now,
		CachedUntil:   now.Add(ttl),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("feed cache marshal: %w", err)
	}

	// Expire at the staleness ceiling rather than the TTL so entries a
	// degraded-mode caller might still want (quota exhaustion fallback)
	// outlive cachedUntil.
	if err := c.client.Set(ctx, cacheKey(tenantID, channelID, rangeBucket), payload, c.maxAge).Err(); err != nil {
		return nil, fmt.Errorf("feed cache set: %w", err)
	}

	return entry, nil
}

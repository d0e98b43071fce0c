// Package youtube implements the provider boundary on the YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
	"github.com/creator-radar/video-signal-engine-go/internal/observability"
	"github.com/creator-radar/video-signal-engine-go/internal/provider"
)

const (
	// maxBatchSize is the provider's cap on ids per videos.list call.
	maxBatchSize = 50

	// Published quota costs: search.list burns 100 units, videos.list 1.
	searchQuotaCost    = 100
	statsListQuotaCost = 1
)

var _ provider.Client = (*Client)(nil)

// Client wraps the YouTube Data API v3 client.
type Client struct {
	service        *youtubeapi.Service
	maxRetries     uint64
	initialBackoff time.Duration
}

// NewClient creates a new YouTube provider client.
func NewClient(ctx context.Context, apiKey string, maxRetries int, initialBackoff time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	service, err := youtubeapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialBackoff <= 0 {
		initialBackoff = 500 * time.Millisecond
	}

	return &Client{
		service:        service,
		maxRetries:     uint64(maxRetries),
		initialBackoff: initialBackoff,
	}, nil
}

// Search fetches one page of video search results for a query within the
// lookback window. Transient failures are retried with exponential backoff;
// quota exhaustion is returned immediately.
func (c *Client) Search(ctx context.Context, params provider.SearchParams) (*provider.SearchPage, int, error) {
	duration := params.DurationFilter
	if duration == "" {
		duration = "any"
	}

	publishedAfter := time.Now().UTC().AddDate(0, 0, -params.WindowDays)

	var response *youtubeapi.SearchListResponse
	operation := func() error {
		call := c.service.Search.List([]string{"snippet"}).
			Q(params.Query).
			Type("video").
			VideoDuration(duration).
			PublishedAfter(publishedAfter.Format(time.RFC3339)).
			MaxResults(params.MaxResults).
			Context(ctx)
		if params.PageToken != "" {
			call = call.PageToken(params.PageToken)
		}

		var err error
		response, err = call.Do()
		return classifyError("search", err)
	}

	if err := c.retry(ctx, operation); err != nil {
		observability.ProviderCallErrors.WithLabelValues("search").Inc()
		return nil, searchQuotaCost, err
	}
	observability.ProviderCalls.WithLabelValues("search").Inc()

	page := &provider.SearchPage{NextPageToken: response.NextPageToken}
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}

		page.Videos = append(page.Videos, model.CandidateVideo{
			VideoID:      item.Id.VideoId,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt:  publishedAt,
		})
	}

	return page, searchQuotaCost, nil
}

// FetchStatsBatch fetches current statistics for the given video ids,
// chunked to the provider's 50-id cap. One bounded network call per chunk.
func (c *Client) FetchStatsBatch(ctx context.Context, videoIDs []string) (map[string]model.Stats, int, error) {
	stats := make(map[string]model.Stats, len(videoIDs))
	if len(videoIDs) == 0 {
		return stats, 0, nil
	}

	unitsUsed := 0
	for _, chunk := range ChunkIDs(videoIDs, maxBatchSize) {
		var response *youtubeapi.VideoListResponse
		operation := func() error {
			var err error
			response, err = c.service.Videos.List([]string{"statistics"}).
				Id(chunk...).
				MaxResults(int64(len(chunk))).
				Context(ctx).
				Do()
			return classifyError("stats_list", err)
		}

		if err := c.retry(ctx, operation); err != nil {
			observability.ProviderCallErrors.WithLabelValues("stats_list").Inc()
			return nil, unitsUsed, err
		}
		observability.ProviderCalls.WithLabelValues("stats_list").Inc()
		unitsUsed += statsListQuotaCost

		for _, item := range response.Items {
			if item.Statistics == nil {
				continue
			}

			like := int64(item.Statistics.LikeCount)
			comments := int64(item.Statistics.CommentCount)
			stats[item.Id] = model.Stats{
				ViewCount:    int64(item.Statistics.ViewCount),
				LikeCount:    &like,
				CommentCount: &comments,
			}
		}
	}

	return stats, unitsUsed, nil
}

func (c *Client) retry(ctx context.Context, operation backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}

// classifyError maps API failures to the provider error taxonomy. Quota
// exhaustion is permanent so backoff does not retry it.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		for _, item := range apiErr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "dailyLimitExceeded" {
				return backoff.Permanent(&provider.Error{Kind: provider.KindQuotaExceeded, Op: op, Err: err})
			}
		}
		if apiErr.Code == 403 {
			// Forbidden without a quota reason is not going to heal on retry.
			return backoff.Permanent(&provider.Error{Kind: provider.KindTransient, Op: op, Err: err})
		}
	}

	return &provider.Error{Kind: provider.KindTransient, Op: op, Err: err}
}

// ChunkIDs splits ids into batches of at most size.
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 || size > maxBatchSize {
		size = maxBatchSize
	}

	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}

	return chunks
}

func thumbnailURL(thumbs *youtubeapi.ThumbnailDetails) string {
	if thumbs == nil {
		return ""
	}
	switch {
	case thumbs.High != nil:
		return thumbs.High.Url
	case thumbs.Medium != nil:
		return thumbs.Medium.Url
	case thumbs.Default != nil:
		return thumbs.Default.Url
	}
	return ""
}

// Package handler exposes the HTTP API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/discovery"
	"github.com/creator-radar/video-signal-engine-go/internal/feed"
	"github.com/creator-radar/video-signal-engine-go/internal/model"
	"github.com/creator-radar/video-signal-engine-go/internal/provider"
)

const headerTenantID = "X-Tenant-ID"

// FeedHandler serves the competitor feed endpoint.
type FeedHandler struct {
	service *discovery.Service
	log     *zap.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(service *discovery.Service, log *zap.Logger) *FeedHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedHandler{service: service, log: log}
}

// feedResponse wraps the assembled page with the opaque continuation token
// clients echo back as ?cursor=.
type feedResponse struct {
	*model.FeedPage
	NextCursor string `json:"nextCursor,omitempty"`
}

// GetCompetitorFeed handles GET /api/v1/channels/:channelID/competitors.
//
// Query parameters:
//
//	q      — niche search phrase, repeatable, in priority order
//	sort   — velocity | engagement | newest | outliers (default velocity)
//	cursor — opaque continuation token from a previous page
func (h *FeedHandler) GetCompetitorFeed(c *gin.Context) {
	channelID := c.Param("channelID")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel ID is required"})
		return
	}

	tenantID := c.GetHeader(headerTenantID)
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header is required"})
		return
	}

	cursor, err := discovery.DecodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	req := discovery.Request{
		TenantID:  tenantID,
		ChannelID: channelID,
		Niche:     discovery.Niche{Queries: c.QueryArray("q")},
		Cursor:    cursor,
		Sort:      feed.ParseSort(c.Query("sort")),
	}

	page, err := h.service.Discover(c.Request.Context(), req)
	if err != nil {
		h.writeDiscoveryError(c, err)
		return
	}

	resp := feedResponse{FeedPage: page}
	if page.NextQueryIndex != nil {
		resp.NextCursor = discovery.Cursor{
			QueryIndex: *page.NextQueryIndex,
			PageToken:  page.NextUpstreamPageToken,
		}.Encode()
	}

	c.JSON(http.StatusOK, resp)
}

// writeDiscoveryError maps pipeline errors to HTTP responses. Quota
// exhaustion is a retryable client-visible condition, transient provider
// failures surface as a bad gateway, anything else is internal.
func (h *FeedHandler) writeDiscoveryError(c *gin.Context, err error) {
	switch {
	case provider.IsQuotaExceeded(err):
		h.log.Warn("feed request rejected, provider quota exhausted", zap.Error(err))
		c.Header("Retry-After", "3600")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":  "provider quota exhausted",
			"detail": "daily search budget reached, try again later",
		})
	case provider.IsTransient(err):
		h.log.Error("feed request failed, provider unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "video provider unavailable"})
	default:
		h.log.Error("feed request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

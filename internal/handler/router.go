package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/middleware"
)

// NewRouter builds the HTTP router. The feed and quota endpoints sit behind
// API-key auth; health and metrics are open for probes and scrapers.
func NewRouter(feedHandler *FeedHandler, opsHandler *OpsHandler, apiKeys []string, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", opsHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(apiKeys, log))
	{
		api.GET("/channels/:channelID/competitors", feedHandler.GetCompetitorFeed)
		api.GET("/quota", opsHandler.Quota)
	}

	return router
}

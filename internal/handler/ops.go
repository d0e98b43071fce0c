package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/quota"
)

// OpsHandler serves health and quota introspection endpoints.
type OpsHandler struct {
	pool        *pgxpool.Pool
	redisClient *redis.Client
	quotaMgr    *quota.Manager
	log         *zap.Logger
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(pool *pgxpool.Pool, redisClient *redis.Client, quotaMgr *quota.Manager, log *zap.Logger) *OpsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OpsHandler{pool: pool, redisClient: redisClient, quotaMgr: quotaMgr, log: log}
}

// Health handles GET /health. Degraded redis is reported but not fatal: the
// feed works without its cache, at a quota cost.
func (h *OpsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Error("health check failed, database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}

	redisStatus := "connected"
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Warn("health check, redis unreachable", zap.Error(err))
		redisStatus = "unreachable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"redis":    redisStatus,
	})
}

// Quota handles GET /api/v1/quota and reports today's ledger position.
func (h *OpsHandler) Quota(c *gin.Context) {
	info, err := h.quotaMgr.Info(c.Request.Context())
	if err != nil {
		h.log.Error("failed to load quota info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// Package middleware provides shared gin middleware.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAPIKey = "X-API-Key"
	headerAuth   = "Authorization"
	bearerPrefix = "Bearer "
)

// APIKeyAuth validates requests against the configured API keys. Keys are
// accepted from X-API-Key or Authorization: Bearer. With no keys configured
// every request is rejected.
func APIKeyAuth(apiKeys []string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	valid := make([]string, 0, len(apiKeys))
	for _, key := range apiKeys {
		if key != "" {
			valid = append(valid, key)
		}
	}

	return func(c *gin.Context) {
		provided := extractAPIKey(c)
		if !isValidAPIKey(provided, valid) {
			log.Warn("unauthorized request",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("remote_addr", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func extractAPIKey(c *gin.Context) string {
	if apiKey := c.GetHeader(headerAPIKey); apiKey != "" {
		return apiKey
	}
	if authHeader := c.GetHeader(headerAuth); strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}
	return ""
}

// isValidAPIKey uses constant-time comparison against every configured key.
func isValidAPIKey(provided string, valid []string) bool {
	if provided == "" || len(valid) == 0 {
		return false
	}
	for _, key := range valid {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

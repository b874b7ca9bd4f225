package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"bagua-net/internal/config"
	"bagua-net/internal/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires the configured token as "X-API-Key" or a bearer
// Authorization header. An empty token leaves the API open.
func AuthMiddleware(cfg config.APIConfig, log *logger.Logger) gin.HandlerFunc {
	want := config.ResolveSecret(cfg.Token)
	return func(c *gin.Context) {
		if want == "" || c.FullPath() == "/healthz" {
			c.Next()
			return
		}
		token := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if token == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
			log.Debug("api auth rejected", map[string]any{"path": c.Request.URL.Path, "client": c.ClientIP()})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func AccessLogMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Debug("api request", map[string]any{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

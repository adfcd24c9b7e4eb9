package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"storyboard-ai-api/pkg/logger"
)

// DefaultAccessLogSkipPaths 不记录访问日志的探活与指标路径
var DefaultAccessLogSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// AccessLog 访问日志中间件；5xx 记为 warn
func AccessLog(skipPaths []string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn(c.Request.Context(), "api request", fields...)
			return
		}
		logger.Info(c.Request.Context(), "api request", fields...)
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/billing-service/pkg/logger"
)

// RequestLogger logs every handled request with latency and status
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.Request.URL.Path
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}

		c.Next()

		log.Infow("Request handled",
			"status_code", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

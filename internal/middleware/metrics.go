package middleware

import (
	"strconv"
	"time"

	"webshop/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录请求数与耗时；handler 标签用路由模板，避免 :id 造成高基数。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(handler, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

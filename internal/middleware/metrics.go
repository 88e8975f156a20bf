package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ephemeral-chat/internal/metrics"
)

// Metrics 记录每个路由的请求耗时
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

package middleware

import (
	"strconv"
	"time"

	"hoa-ledger/internal/metrics"
	"hoa-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggingMiddleware writes one line per request and records the request
// metrics. Routes are labelled by their pattern, never the raw path, so
// receipt codes and poll ids stay out of metric labels.
func LoggingMiddleware(l *logger.Logger, m *metrics.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if m != nil {
			m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(latency.Seconds())
		}

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		log.For(c.Request.Context()).Info("request",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()))
	}
}

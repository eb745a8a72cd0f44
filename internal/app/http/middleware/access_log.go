package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

func AccessLog(log *logrus.Entry, obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if obs != nil {
			obs.ObserveHTTP(c.Request.Method, route, status, elapsed)
		}

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"route":   route,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": elapsed.String(),
			"ip":      c.ClientIP(),
		})
		if id := AccountID(c); id != "" {
			entry = entry.WithField("account_id", id)
		}
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

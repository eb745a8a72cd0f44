package middleware

import (
	"errors"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RateLimitObserver interface {
	RateLimited(route string)
}

// RateLimit keys the window on the authenticated account, falling back to the
// client IP, and the matched route pattern. A failing counter store lets the
// request through.
func RateLimit(limiter ratelimit.Limiter, obs RateLimitObserver, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := AccountID(c)
		if identity == "" {
			identity = c.ClientIP()
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		err := limiter.Allow(c.Request.Context(), identity, route)
		var limited *ratelimit.LimitedError
		switch {
		case err == nil:
			c.Next()
		case errors.As(err, &limited):
			if obs != nil {
				obs.RateLimited(route)
			}
			log.WithFields(logrus.Fields{
				"identity":    identity,
				"route":       route,
				"retry_after": limited.RetryAfterSeconds(),
			}).Info("rate limited")
			apierr.Respond(c, log, err)
		default:
			log.WithError(err).WithField("route", route).Warn("rate limiter unavailable")
			c.Next()
		}
	}
}

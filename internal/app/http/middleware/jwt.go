package middleware

import (
	"context"
	"strings"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/infra/token"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const AccountIDKey = "account_id"

// AccountID returns the subject set by AuthMiddleware, or "".
func AccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// AuthMiddleware requires "Authorization: Bearer <token>" and stores the
// verified subject under AccountIDKey.
func AuthMiddleware(tokens TokenVerifier, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierr.Respond(c, log, apierr.ErrUnauthorized)
			return
		}

		raw := strings.TrimPrefix(authHeader, "Bearer ")
		if raw == authHeader || strings.TrimSpace(raw) == "" {
			apierr.Respond(c, log, apierr.ErrUnauthorized)
			return
		}

		id, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).WithField("route", c.FullPath()).Debug("token rejected")
			apierr.Respond(c, log, err)
			return
		}

		c.Set(AccountIDKey, id.Subject)
		c.Next()
	}
}

// AdminCheck reports whether accountID may use the admin surface.
type AdminCheck func(ctx context.Context, accountID string) (bool, error)

func RequireAdmin(isAdmin AdminCheck, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := AccountID(c)
		if id == "" {
			apierr.Respond(c, log, apierr.ErrUnauthorized)
			return
		}
		ok, err := isAdmin(c.Request.Context(), id)
		if err != nil {
			apierr.Respond(c, log, err)
			return
		}
		if !ok {
			apierr.Respond(c, log, apierr.ErrForbidden)
			return
		}
		c.Next()
	}
}

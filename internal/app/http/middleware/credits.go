package middleware

import (
	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/domain/credits"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequireCredits rejects with 402 before the handler runs when the account
// cannot cover cost. The debit itself happens after the handler's work
// succeeds.
func RequireCredits(gate *credits.Gate, cost int64, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gate.EnsureAffordable(c.Request.Context(), AccountID(c), cost); err != nil {
			apierr.Respond(c, log, err)
			return
		}
		c.Next()
	}
}

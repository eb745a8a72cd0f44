package middleware

import (
	"context"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/marketplace"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AccountGetter interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
}

// RequirePlan lets the request through only when the caller's plan passes
// allowed.
func RequirePlan(repo AccountGetter, allowed func(plan string) bool, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := repo.Get(c.Request.Context(), AccountID(c))
		if err != nil {
			apierr.Respond(c, log, err)
			return
		}
		if !allowed(acct.Plan) {
			apierr.Respond(c, log, marketplace.ErrPlanRequired)
			return
		}
		c.Next()
	}
}

package credits

import (
	"net/http"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/api/pagination"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const historyPageSize = 20

type Handler struct {
	accounts accounts.Repository
	ledger   *credits.Ledger
	log      *logrus.Entry
}

func NewHandler(repo accounts.Repository, ledger *credits.Ledger, log *logrus.Entry) *Handler {
	return &Handler{accounts: repo, ledger: ledger, log: log}
}

// Balance handles GET /api/credits/balance.
func (h *Handler) Balance(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": acct.Credits, "plan": acct.Plan})
}

// History handles GET /api/credits/history?page=, newest first.
func (h *Handler) History(c *gin.Context) {
	page := pagination.Page(c)

	rows, total, err := h.ledger.History(c.Request.Context(), middleware.AccountID(c), page, historyPageSize)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": rows,
		"total":        total,
		"page":         page,
		"limit":        historyPageSize,
	})
}

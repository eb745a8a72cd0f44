package admin

import (
	"net/http"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/api/pagination"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const pageSize = 50

// AdminAccount adds the payment references hidden from the public JSON.
type AdminAccount struct {
	accounts.Account
	PaymentCustomerID     *string `json:"paymentCustomerId,omitempty"`
	PaymentSubscriptionID *string `json:"paymentSubscriptionId,omitempty"`
	PaymentConnectID      *string `json:"paymentConnectId,omitempty"`
}

func toAdmin(a accounts.Account) AdminAccount {
	return AdminAccount{
		Account:               a,
		PaymentCustomerID:     a.PaymentCustomerID,
		PaymentSubscriptionID: a.PaymentSubscriptionID,
		PaymentConnectID:      a.PaymentConnectID,
	}
}

type Handler struct {
	accounts accounts.Repository
	ledger   *credits.Ledger
	market   *marketplace.Service
	log      *logrus.Entry
}

func NewHandler(repo accounts.Repository, ledger *credits.Ledger, market *marketplace.Service, log *logrus.Entry) *Handler {
	return &Handler{accounts: repo, ledger: ledger, market: market, log: log}
}

// ListAccounts handles GET /admin/accounts.
func (h *Handler) ListAccounts(c *gin.Context) {
	page := pagination.Page(c)
	rows, total, err := h.accounts.List(c.Request.Context(), pagination.Offset(page, pageSize), pageSize)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	out := make([]AdminAccount, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAdmin(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out, "total": total, "page": page, "limit": pageSize})
}

// GetAccount handles GET /admin/accounts/:id with a ledger reconciliation.
// Imbalances are logged by the ledger.
func (h *Handler) GetAccount(c *gin.Context) {
	ctx := c.Request.Context()
	acct, err := h.accounts.Get(ctx, c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	rec, err := h.ledger.Reconcile(ctx, acct.ID)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	recent, _, err := h.ledger.History(ctx, acct.ID, 1, 20)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":            toAdmin(*acct),
		"reconciliation":     rec,
		"recentTransactions": recent,
	})
}

// ListPurchases handles GET /admin/purchases.
func (h *Handler) ListPurchases(c *gin.Context) {
	page := pagination.Page(c)
	rows, total, err := h.market.Purchases(c.Request.Context(), marketplace.PurchaseFilter{
		Offset: pagination.Offset(page, pageSize),
		Limit:  pageSize,
	})
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows, "total": total, "page": page, "limit": pageSize})
}

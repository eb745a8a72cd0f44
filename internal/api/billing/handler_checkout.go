package billing

import (
	"context"
	"net/http"
	"strconv"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/plans"
	stripeinfra "sprynt-api/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Gateway is the slice of the payment provider the billing routes use.
type Gateway interface {
	CreateCheckout(ctx context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error)
	CreatePortal(ctx context.Context, customerID, returnURL string) (string, error)
	CreateConnectAccount(ctx context.Context, accountID, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, connectID, refreshURL, returnURL string) (string, error)
}

type Handler struct {
	accounts accounts.Repository
	gateway  Gateway
	appURL   string
	log      *logrus.Entry
}

func NewHandler(repo accounts.Repository, gateway Gateway, appURL string, log *logrus.Entry) *Handler {
	return &Handler{accounts: repo, gateway: gateway, appURL: appURL, log: log}
}

// ListPlans handles GET /api/payments/plans.
func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": plans.All(), "creditPacks": plans.Packs()})
}

// CreateCheckoutSession handles POST /api/payments/checkout. The body names
// either a plan (subscription) or a credit pack (one-off payment).
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body struct {
		PlanID       string `json:"planId"`
		CreditPackID string `json:"creditPackId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("Invalid request body"))
		return
	}

	acct, err := h.accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	var req stripeinfra.CheckoutRequest
	switch {
	case body.PlanID != "" && body.CreditPackID != "":
		apierr.Respond(c, h.log, apierr.Invalid("Specify planId or creditPackId, not both"))
		return

	case body.PlanID != "":
		plan, ok := plans.Purchasable(body.PlanID)
		if !ok {
			apierr.Respond(c, h.log, apierr.Invalid("Invalid plan"))
			return
		}
		req = stripeinfra.CheckoutRequest{
			Item: stripeinfra.LineItem{Name: plan.Name, UnitAmount: plan.PriceCents, Recurring: true},
			Metadata: map[string]string{
				stripeinfra.MetaType:   stripeinfra.TypeSubscription,
				stripeinfra.MetaPlanID: plan.ID,
				stripeinfra.MetaUserID: acct.ID,
			},
			SuccessURL: h.appURL + "/settings?subscribed=true",
			CancelURL:  h.appURL + "/pricing",
		}

	case body.CreditPackID != "":
		pack, ok := plans.LookupPack(body.CreditPackID)
		if !ok {
			apierr.Respond(c, h.log, apierr.Invalid("Invalid credit pack"))
			return
		}
		req = stripeinfra.CheckoutRequest{
			Item: stripeinfra.LineItem{Name: strconv.FormatInt(pack.Credits, 10) + " Sprynt credits", UnitAmount: pack.PriceCents},
			Metadata: map[string]string{
				stripeinfra.MetaType:    stripeinfra.TypeCreditPack,
				stripeinfra.MetaPackID:  pack.ID,
				stripeinfra.MetaCredits: strconv.FormatInt(pack.Credits, 10),
				stripeinfra.MetaUserID:  acct.ID,
			},
			SuccessURL: h.appURL + "/settings?credits_purchased=true",
			CancelURL:  h.appURL + "/pricing",
		}

	default:
		apierr.Respond(c, h.log, apierr.Invalid("Specify planId or creditPackId"))
		return
	}

	req.AccountID = acct.ID
	req.Email = acct.Email
	if acct.PaymentCustomerID != nil {
		req.CustomerID = *acct.PaymentCustomerID
	}

	session, err := h.gateway.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		apierr.Respond(c, h.log, apierr.External("payments", err))
		return
	}

	h.log.WithFields(logrus.Fields{
		"account_id": acct.ID,
		"session_id": session.ID,
		"type":       req.Metadata[stripeinfra.MetaType],
	}).Info("checkout session created")
	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// CreateBillingPortal handles POST /api/payments/portal.
func (h *Handler) CreateBillingPortal(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	if acct.PaymentCustomerID == nil || *acct.PaymentCustomerID == "" {
		c.JSON(http.StatusNotFound, gin.H{"message": "No billing account found"})
		return
	}

	url, err := h.gateway.CreatePortal(c.Request.Context(), *acct.PaymentCustomerID, h.appURL+"/settings")
	if err != nil {
		apierr.Respond(c, h.log, apierr.External("payments", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ConnectOnboarding handles POST /api/payments/connect. The connected
// account is created once and reused for later onboarding links.
func (h *Handler) ConnectOnboarding(c *gin.Context) {
	ctx := c.Request.Context()
	acct, err := h.accounts.Get(ctx, middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	connectID := ""
	if acct.PaymentConnectID != nil {
		connectID = *acct.PaymentConnectID
	}
	if connectID == "" {
		connectID, err = h.gateway.CreateConnectAccount(ctx, acct.ID, acct.Email)
		if err != nil {
			apierr.Respond(c, h.log, apierr.External("payments", err))
			return
		}
		if err := h.accounts.SetConnectAccount(ctx, acct.ID, connectID); err != nil {
			apierr.Respond(c, h.log, err)
			return
		}
	}

	url, err := h.gateway.CreateOnboardingLink(ctx, connectID, h.appURL+"/settings", h.appURL+"/settings?connected=true")
	if err != nil {
		apierr.Respond(c, h.log, apierr.External("payments", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

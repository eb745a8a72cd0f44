package stripe

import (
	"context"
	"fmt"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

type LineItem struct {
	Name       string
	UnitAmount int64
	Recurring  bool
}

type CheckoutRequest struct {
	Item        LineItem
	Metadata    map[string]string
	CustomerID  string
	Email       string
	AccountID   string
	SuccessURL  string
	CancelURL   string
	Destination string // connected account receiving the payout
	FeeCents    int64  // application fee withheld when Destination is set
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client wraps the provider API with only the calls this service makes.
type Client struct {
	api *client.API
}

func NewClient(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	price := &stripego.CheckoutSessionLineItemPriceDataParams{
		Currency: stripego.String(string(stripego.CurrencyUSD)),
		ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(req.Item.Name),
		},
		UnitAmount: stripego.Int64(req.Item.UnitAmount),
	}
	mode := stripego.CheckoutSessionModePayment
	if req.Item.Recurring {
		mode = stripego.CheckoutSessionModeSubscription
		price.Recurring = &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripego.String(string(stripego.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(mode)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{PriceData: price, Quantity: stripego.Int64(1)},
		},
		ClientReferenceID: stripego.String(req.AccountID),
		Metadata:          req.Metadata,
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripego.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripego.String(req.Email)
	}

	if req.Item.Recurring {
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	} else {
		params.PaymentIntentData = &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		}
		if req.Destination != "" {
			params.PaymentIntentData.ApplicationFeeAmount = stripego.Int64(req.FeeCents)
			params.PaymentIntentData.TransferData = &stripego.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripego.String(req.Destination),
			}
		}
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreatePortal(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripego.BillingPortalSessionParams{
		Customer:  stripego.String(customerID),
		ReturnURL: stripego.String(returnURL),
	}
	params.Context = ctx

	portal, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return portal.URL, nil
}

// CreateConnectAccount opens an express connected account for a seller.
func (c *Client) CreateConnectAccount(ctx context.Context, accountID, email string) (string, error) {
	params := &stripego.AccountParams{
		Type:     stripego.String(string(stripego.AccountTypeExpress)),
		Email:    stripego.String(email),
		Metadata: map[string]string{MetaUserID: accountID},
	}
	params.Context = ctx

	acct, err := c.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("create connect account: %w", err)
	}
	return acct.ID, nil
}

func (c *Client) CreateOnboardingLink(ctx context.Context, connectID, refreshURL, returnURL string) (string, error) {
	params := &stripego.AccountLinkParams{
		Account:    stripego.String(connectID),
		RefreshURL: stripego.String(refreshURL),
		ReturnURL:  stripego.String(returnURL),
		Type:       stripego.String(string(stripego.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("create onboarding link: %w", err)
	}
	return link.URL, nil
}

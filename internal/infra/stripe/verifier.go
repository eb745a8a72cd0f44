package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sprynt-api/internal/domain/payments"
	"sprynt-api/internal/domain/plans"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// Checkout metadata keys written by the checkout handlers.
const (
	MetaType      = "type"
	MetaUserID    = "userId"
	MetaPlanID    = "planId"
	MetaPackID    = "packId"
	MetaCredits   = "credits"
	MetaListingID = "listingId"
	MetaBuyerID   = "buyerId"
	MetaSellerID  = "sellerId"
	MetaFeeCents  = "feeCents"

	TypeCreditPack          = "credit_pack"
	TypeSubscription        = "subscription"
	TypeMarketplacePurchase = "marketplace_purchase"
)

type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

func (v *Verifier) Verify(payload []byte, header string) (payments.Event, error) {
	if header == "" {
		return nil, fmt.Errorf("%w: missing signature header", payments.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case err == nil:
	case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature), errors.Is(err, webhook.ErrTooOld):
		return nil, fmt.Errorf("%w: %v", payments.ErrInvalidSignature, err)
	default:
		// signature was fine, the body is not an event
		return nil, fmt.Errorf("%w: %v", payments.ErrMalformedEvent, err)
	}
	return ToEvent(event), nil
}

// ToEvent maps a verified provider event onto the closed payments.Event set.
func ToEvent(event stripego.Event) payments.Event {
	typ := string(event.Type)
	unrecognized := func(reason string) payments.Event {
		return payments.Unrecognized{ID: event.ID, Type: typ, Reason: reason}
	}
	if event.ID == "" || event.Data == nil {
		return unrecognized("missing event id or data")
	}

	switch typ {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return unrecognized("unparseable checkout session")
		}
		return fromCheckoutSession(event.ID, typ, &session)

	case "customer.subscription.deleted", "customer.subscription.updated":
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil || sub.ID == "" {
			return unrecognized("unparseable subscription")
		}
		if typ == "customer.subscription.updated" && NormalizeStatus(string(sub.Status)) != "canceled" {
			return unrecognized("subscription still " + string(sub.Status))
		}
		return payments.SubscriptionCanceled{ID: event.ID, SubscriptionID: sub.ID}

	case "invoice.paid":
		var inv stripego.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return unrecognized("unparseable invoice")
		}
		if inv.BillingReason != stripego.InvoiceBillingReasonSubscriptionCycle {
			return unrecognized("invoice billing reason " + string(inv.BillingReason))
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return unrecognized("invoice without subscription")
		}
		renewed := payments.SubscriptionRenewed{ID: event.ID, InvoiceID: inv.ID, SubscriptionID: inv.Subscription.ID}
		if inv.Customer != nil {
			renewed.CustomerID = inv.Customer.ID
		}
		return renewed

	default:
		return unrecognized("unhandled event type")
	}
}

func fromCheckoutSession(eventID, typ string, s *stripego.CheckoutSession) payments.Event {
	unrecognized := func(reason string) payments.Event {
		return payments.Unrecognized{ID: eventID, Type: typ, Reason: reason}
	}

	switch s.PaymentStatus {
	case stripego.CheckoutSessionPaymentStatusPaid, stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		return unrecognized("checkout not paid: " + string(s.PaymentStatus))
	}

	md := s.Metadata
	accountID := md[MetaUserID]
	if accountID == "" {
		accountID = s.ClientReferenceID
	}

	switch md[MetaType] {
	case TypeCreditPack:
		credits := int64(0)
		if pack, ok := plans.LookupPack(md[MetaPackID]); ok {
			credits = pack.Credits
		} else if n, err := strconv.ParseInt(md[MetaCredits], 10, 64); err == nil {
			credits = n
		}
		if accountID == "" || credits <= 0 {
			return unrecognized("credit pack metadata incomplete")
		}
		return payments.CreditPackPurchased{
			ID:        eventID,
			PaymentID: s.ID,
			AccountID: accountID,
			PackID:    md[MetaPackID],
			Credits:   credits,
		}

	case TypeSubscription:
		if accountID == "" || md[MetaPlanID] == "" {
			return unrecognized("subscription metadata incomplete")
		}
		ev := payments.SubscriptionPurchased{
			ID:        eventID,
			PaymentID: s.ID,
			AccountID: accountID,
			Plan:      md[MetaPlanID],
		}
		if s.Subscription != nil {
			ev.SubscriptionID = s.Subscription.ID
		}
		if s.Customer != nil {
			ev.CustomerID = s.Customer.ID
		}
		return ev

	case TypeMarketplacePurchase:
		buyerID := md[MetaBuyerID]
		if buyerID == "" {
			buyerID = accountID
		}
		if md[MetaListingID] == "" || buyerID == "" {
			return unrecognized("marketplace metadata incomplete")
		}
		intentID := s.ID
		if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
			intentID = s.PaymentIntent.ID
		}
		var feeCents *int64
		if raw := md[MetaFeeCents]; raw != "" {
			fee, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return unrecognized("marketplace fee metadata invalid")
			}
			feeCents = &fee
		}
		return payments.MarketplacePurchased{
			ID:              eventID,
			PaymentIntentID: intentID,
			ListingID:       md[MetaListingID],
			BuyerID:         buyerID,
			AmountCents:     s.AmountTotal,
			FeeCents:        feeCents,
		}

	default:
		return unrecognized("unknown checkout type " + strconv.Quote(md[MetaType]))
	}
}

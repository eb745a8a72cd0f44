package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/domain/plans"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrMalformedEvent   = errors.New("payments: malformed webhook payload")
)

// Verifier authenticates a raw provider payload and maps it onto an Event.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}

type Observer interface {
	WebhookEvent(kind, outcome string)
}

type nopObserver struct{}

func (nopObserver) WebhookEvent(string, string) {}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// skipError is a permanent failure: the effect is rolled back and the event
// acknowledged, since redelivery cannot fix it.
type skipError struct {
	reason string
	err    error
}

func (e *skipError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *skipError) Unwrap() error { return e.err }

func skip(reason string, err error) error {
	return &skipError{reason: reason, err: err}
}

type Processor struct {
	db       *gorm.DB
	verifier Verifier
	ledger   *credits.Ledger
	market   *marketplace.Service
	log      *logrus.Entry
	obs      Observer
	now      func() time.Time
}

func NewProcessor(db *gorm.DB, verifier Verifier, ledger *credits.Ledger, market *marketplace.Service, log *logrus.Entry, obs Observer) *Processor {
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Processor{
		db:       db,
		verifier: verifier,
		ledger:   ledger,
		market:   market,
		log:      log.WithField("component", "payment_webhook"),
		obs:      obs,
		now:      time.Now,
	}
}

// Handle verifies a raw delivery and applies it. It is safe to call any
// number of times with the same payload.
func (p *Processor) Handle(ctx context.Context, payload []byte, signatureHeader string) (Outcome, error) {
	ev, err := p.verifier.Verify(payload, signatureHeader)
	if err != nil {
		p.obs.WebhookEvent("unknown", "rejected")
		p.log.WithError(err).Warn("webhook verification failed")
		return "", err
	}
	return p.Apply(ctx, ev)
}

// Apply records the event and its effect in one transaction. A replay of an
// already recorded event id is a no-op.
func (p *Processor) Apply(ctx context.Context, ev Event) (Outcome, error) {
	log := p.log.WithFields(logrus.Fields{"event_id": ev.EventID(), "kind": ev.Kind()})

	if u, ok := ev.(Unrecognized); ok {
		log.WithFields(logrus.Fields{"type": u.Type, "reason": u.Reason}).Info("webhook event ignored")
		p.obs.WebhookEvent(ev.Kind(), string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}

	duplicate := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ProcessedEvent{
			ExternalEventID: ev.EventID(),
			Kind:            ev.Kind(),
			ProcessedAt:     p.now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("record event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			duplicate = true
			return nil
		}
		return p.dispatch(ctx, tx, ev)
	})

	var se *skipError
	switch {
	case err == nil && duplicate:
		log.Info("duplicate webhook event")
		p.obs.WebhookEvent(ev.Kind(), string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	case err == nil:
		log.Info("webhook event applied")
		p.obs.WebhookEvent(ev.Kind(), string(OutcomeApplied))
		return OutcomeApplied, nil
	case errors.As(err, &se):
		log.WithError(err).Warn("webhook event skipped")
		p.obs.WebhookEvent(ev.Kind(), string(OutcomeIgnored))
		return OutcomeIgnored, nil
	default:
		log.WithError(err).Error("webhook event failed")
		p.obs.WebhookEvent(ev.Kind(), "error")
		return "", err
	}
}

func (p *Processor) dispatch(ctx context.Context, tx *gorm.DB, ev Event) error {
	ledger := p.ledger.WithTx(tx)

	switch e := ev.(type) {
	case CreditPackPurchased:
		return grant(ctx, ledger, e.AccountID, e.Credits, credits.SourceCreditPack, e.PaymentID)

	case SubscriptionPurchased:
		plan, ok := plans.Purchasable(e.Plan)
		if !ok {
			return skip(fmt.Sprintf("unknown plan %q", e.Plan), nil)
		}
		updates := map[string]any{
			"plan":                    plan.ID,
			"payment_subscription_id": nullable(e.SubscriptionID),
		}
		if e.CustomerID != "" {
			updates["payment_customer_id"] = e.CustomerID
		}
		res := tx.Model(&accounts.Account{}).Where("id = ?", e.AccountID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update plan: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return skip("account not found", accounts.ErrNotFound)
		}
		return grant(ctx, ledger, e.AccountID, plan.MonthlyCredits, credits.SourceSubscription, e.PaymentID)

	case SubscriptionRenewed:
		var acct accounts.Account
		err := tx.Select("id", "plan").Where("payment_subscription_id = ?", e.SubscriptionID).Take(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skip("no account on subscription", accounts.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load subscriber: %w", err)
		}
		plan, ok := plans.Purchasable(acct.Plan)
		if !ok {
			return skip(fmt.Sprintf("account on non-paid plan %q", acct.Plan), nil)
		}
		return grant(ctx, ledger, acct.ID, plan.MonthlyCredits, credits.SourceRenewal, e.InvoiceID)

	case SubscriptionCanceled:
		res := tx.Model(&accounts.Account{}).
			Where("payment_subscription_id = ?", e.SubscriptionID).
			Updates(map[string]any{"plan": plans.TierFree, "payment_subscription_id": nil})
		if res.Error != nil {
			return fmt.Errorf("revert plan: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			p.log.WithField("subscription_id", e.SubscriptionID).Info("cancellation matched no account")
		}
		return nil

	case MarketplacePurchased:
		_, _, err := p.market.WithTx(tx).RecordPurchase(ctx, marketplace.PurchaseRecord{
			ListingID:       e.ListingID,
			BuyerID:         e.BuyerID,
			PaymentIntentID: e.PaymentIntentID,
			AmountCents:     e.AmountCents,
			FeeCents:        e.FeeCents,
		})
		switch {
		case errors.Is(err, marketplace.ErrListingNotFound), errors.Is(err, marketplace.ErrInvalidListing):
			return skip("marketplace purchase rejected", err)
		case err != nil:
			return fmt.Errorf("record purchase: %w", err)
		}
		return nil

	case Unrecognized:
		return nil

	default:
		return skip(fmt.Sprintf("unhandled event type %T", ev), nil)
	}
}

func grant(ctx context.Context, ledger *credits.Ledger, accountID string, amount int64, source, paymentID string) error {
	_, err := ledger.Credit(ctx, accountID, amount, source, paymentID)
	switch {
	case err == nil, errors.Is(err, credits.ErrDuplicatePayment):
		return nil
	case errors.Is(err, credits.ErrAccountNotFound), errors.Is(err, credits.ErrInvalidAmount):
		return skip("credit grant rejected", err)
	default:
		return err
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package payments

// Event is the closed set of provider events this service acts on. The
// unexported marker keeps the set sealed to this package.
type Event interface {
	EventID() string
	Kind() string
	sealed()
}

const (
	KindCreditPackPurchased   = "credit_pack_purchased"
	KindSubscriptionPurchased = "subscription_purchased"
	KindMarketplacePurchased  = "marketplace_purchased"
	KindSubscriptionCanceled  = "subscription_canceled"
	KindSubscriptionRenewed   = "subscription_renewed"
	KindUnrecognized          = "unrecognized"
)

type CreditPackPurchased struct {
	ID        string
	PaymentID string // checkout session id, dedup key for the ledger
	AccountID string
	PackID    string
	Credits   int64
}

type SubscriptionPurchased struct {
	ID             string
	PaymentID      string
	AccountID      string
	Plan           string
	SubscriptionID string
	CustomerID     string
}

type MarketplacePurchased struct {
	ID              string
	PaymentIntentID string
	ListingID       string
	BuyerID         string
	AmountCents     int64
	FeeCents        *int64 // fee quoted at checkout, nil for sessions created without one
}

type SubscriptionCanceled struct {
	ID             string
	SubscriptionID string
}

type SubscriptionRenewed struct {
	ID             string
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

// Unrecognized is anything outside the handled set, including handled kinds
// whose payload could not be interpreted. It is logged and acknowledged.
type Unrecognized struct {
	ID     string
	Type   string
	Reason string
}

func (e CreditPackPurchased) EventID() string   { return e.ID }
func (e SubscriptionPurchased) EventID() string { return e.ID }
func (e MarketplacePurchased) EventID() string  { return e.ID }
func (e SubscriptionCanceled) EventID() string  { return e.ID }
func (e SubscriptionRenewed) EventID() string   { return e.ID }
func (e Unrecognized) EventID() string          { return e.ID }

func (CreditPackPurchased) Kind() string   { return KindCreditPackPurchased }
func (SubscriptionPurchased) Kind() string { return KindSubscriptionPurchased }
func (MarketplacePurchased) Kind() string  { return KindMarketplacePurchased }
func (SubscriptionCanceled) Kind() string  { return KindSubscriptionCanceled }
func (SubscriptionRenewed) Kind() string   { return KindSubscriptionRenewed }
func (Unrecognized) Kind() string          { return KindUnrecognized }

func (CreditPackPurchased) sealed() {}
func (SubscriptionPurchased) sealed() {}
func (MarketplacePurchased) sealed() {}
func (SubscriptionCanceled) sealed() {}
func (SubscriptionRenewed) sealed() {}
func (Unrecognized) sealed() {}

package credits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Kind string

const (
	KindDebit  Kind = "debit"
	KindCredit Kind = "credit"
)

// Credit sources.
const (
	SourceSignupBonus  = "signup_bonus"
	SourceCreditPack   = "credit_pack"
	SourceSubscription = "subscription"
	SourceRenewal      = "subscription_renewal"
)

// Transaction is an append-only ledger row. Rows are never updated or deleted.
type Transaction struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID         string    `gorm:"type:varchar(36);not null;index:idx_credit_tx_account_created,priority:1" json:"accountId"`
	Amount            int64     `gorm:"not null" json:"amount"`
	Kind              Kind      `gorm:"type:varchar(8);not null" json:"type"`
	Feature           *string   `gorm:"type:varchar(32)" json:"aiFeature,omitempty"`
	Source            *string   `gorm:"type:varchar(32)" json:"source,omitempty"`
	ExternalPaymentID *string   `gorm:"type:varchar(255);uniqueIndex:idx_credit_tx_external_payment" json:"externalPaymentId,omitempty"`
	BalanceAfter      int64     `gorm:"not null" json:"balanceAfter"`
	CreatedAt         time.Time `gorm:"index:idx_credit_tx_account_created,priority:2" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "credit_transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

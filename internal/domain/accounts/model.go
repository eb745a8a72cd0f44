package accounts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	ID          string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string  `gorm:"not null;uniqueIndex:idx_accounts_email" json:"email"`
	DisplayName string  `json:"displayName"`
	AvatarURL   string  `json:"avatarUrl,omitempty"`
	OIDCSubject *string `gorm:"column:oidc_subject;uniqueIndex:idx_accounts_oidc_subject" json:"-"`
	Role        string  `gorm:"type:varchar(16);not null;default:'user'" json:"role"`

	// Credits is the denormalized ledger balance. Only credits.Ledger writes it.
	Credits int64  `gorm:"not null;default:0;check:chk_accounts_credits,credits >= 0" json:"credits"`
	Plan    string `gorm:"type:varchar(16);not null;default:'free'" json:"plan"`

	PaymentCustomerID     *string `gorm:"column:payment_customer_id;uniqueIndex:idx_accounts_payment_customer_id" json:"-"`
	PaymentSubscriptionID *string `gorm:"column:payment_subscription_id;index" json:"-"`
	PaymentConnectID      *string `gorm:"column:payment_connect_id" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.Plan == "" {
		a.Plan = "free"
	}
	return nil
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

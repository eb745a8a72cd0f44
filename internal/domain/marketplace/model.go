package marketplace

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LicensePersonal   = "personal"
	LicenseCommercial = "commercial"
	LicenseCC0        = "cc0"
)

type Listing struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SellerID    string `gorm:"type:varchar(36);not null;index" json:"sellerId"`
	ProjectID   string `gorm:"type:varchar(36);not null;index" json:"projectId"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `gorm:"not null;check:chk_listings_price,price_cents >= 0" json:"priceCents"`
	License     string `gorm:"type:varchar(16);not null;default:'personal'" json:"license"`

	// Counters only move through single-statement increments.
	Downloads   int64 `gorm:"not null;default:0" json:"downloads"`
	RatingSum   int64 `gorm:"not null;default:0" json:"ratingSum"`
	RatingCount int64 `gorm:"not null;default:0" json:"ratingCount"`

	IsActive  bool      `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Listing) TableName() string {
	return "marketplace_listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type Purchase struct {
	ID                      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID               string `gorm:"type:varchar(36);not null;index:idx_purchases_listing_buyer,priority:1" json:"listingId"`
	BuyerID                 string `gorm:"type:varchar(36);not null;index:idx_purchases_listing_buyer,priority:2" json:"buyerId"`
	ExternalPaymentIntentID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_purchases_payment_intent" json:"externalPaymentIntentId"`
	AmountCents             int64  `gorm:"not null" json:"amountCents"`
	PlatformFeeCents        int64  `gorm:"not null" json:"platformFeeCents"`
	SellerPayoutCents       int64  `gorm:"not null;check:chk_purchases_split,platform_fee_cents + seller_payout_cents = amount_cents" json:"sellerPayoutCents"`
	Rating                  *int   `json:"rating,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (Purchase) TableName() string {
	return "marketplace_purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ListingView is a listing joined with its seller and project for display.
type ListingView struct {
	Listing
	UserName      string `json:"userName"`
	UserAvatarURL string `json:"userAvatarUrl,omitempty"`
	ThumbnailKey  string `json:"thumbnailKey,omitempty"`
}

func (v ListingView) AverageRating() float64 {
	if v.RatingCount == 0 {
		return 0
	}
	return float64(v.RatingSum) / float64(v.RatingCount)
}

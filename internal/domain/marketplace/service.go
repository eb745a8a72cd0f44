package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/plans"
	"sprynt-api/internal/domain/projects"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const PageSize = 24

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrSellerNotFound  = errors.New("seller not found")
	ErrOwnListing      = errors.New("cannot purchase your own listing")
	ErrPlanRequired    = errors.New("pro or studio plan required")
	ErrNotPurchased    = errors.New("listing not purchased")
	ErrAlreadyRated    = errors.New("listing already rated")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidListing  = errors.New("invalid listing")
)

type Service struct {
	db             *gorm.DB
	defaultFeeRate float64
	log            *logrus.Entry
}

func NewService(db *gorm.DB, defaultFeeRate float64, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{db: db, defaultFeeRate: defaultFeeRate, log: log.WithField("component", "marketplace")}
}

// WithTx binds the service to an outer transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, defaultFeeRate: s.defaultFeeRate, log: s.log}
}

type ListQuery struct {
	Sort  string
	Query string
	Page  int
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]ListingView, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	tx := s.views(ctx).Where("ml.is_active = ?", true)
	if term := strings.TrimSpace(q.Query); term != "" {
		like := "%" + term + "%"
		tx = tx.Where("(ml.title LIKE ? OR ml.description LIKE ?)", like, like)
	}

	var rows []ListingView
	err := tx.Order(orderFor(q.Sort)).
		Offset((page - 1) * PageSize).
		Limit(PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ListingView, error) {
	var rows []ListingView
	if err := s.views(ctx).Where("ml.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrListingNotFound
	}
	return &rows[0], nil
}

func (s *Service) views(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("marketplace_listings AS ml").
		Select("ml.*, a.display_name AS user_name, a.avatar_url AS user_avatar_url, p.thumbnail_key AS thumbnail_key").
		Joins("JOIN accounts a ON a.id = ml.seller_id").
		Joins("LEFT JOIN projects p ON p.id = ml.project_id")
}

func orderFor(sort string) string {
	switch sort {
	case "popular":
		return "ml.downloads DESC"
	case "price_low":
		return "ml.price_cents ASC"
	case "price_high":
		return "ml.price_cents DESC"
	default:
		return "ml.created_at DESC"
	}
}

type CreateInput struct {
	ProjectID   string
	Title       string
	Description string
	PriceCents  int64
	License     string
}

func (s *Service) Create(ctx context.Context, sellerID string, in CreateInput) (*Listing, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.ProjectID == "" || in.PriceCents < 0 {
		return nil, ErrInvalidListing
	}
	switch in.License {
	case "":
		in.License = LicensePersonal
	case LicensePersonal, LicenseCommercial, LicenseCC0:
	default:
		return nil, ErrInvalidListing
	}

	var seller accounts.Account
	if err := s.db.WithContext(ctx).Select("id", "plan").Where("id = ?", sellerID).Take(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("load seller: %w", err)
	}
	if !plans.CanSell(seller.Plan) {
		return nil, ErrPlanRequired
	}

	var n int64
	err := s.db.WithContext(ctx).Model(&projects.Project{}).
		Where("id = ? AND user_id = ?", in.ProjectID, sellerID).
		Count(&n).Error
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if n == 0 {
		return nil, ErrProjectNotFound
	}

	listing := Listing{
		SellerID:    sellerID,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		License:     in.License,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&listing).Error; err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return &listing, nil
}

// ForPurchase returns an active listing the buyer is allowed to buy, plus its seller.
func (s *Service) ForPurchase(ctx context.Context, listingID, buyerID string) (*Listing, *accounts.Account, error) {
	var listing Listing
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", listingID, true).Take(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrListingNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load listing: %w", err)
	}
	if listing.SellerID == buyerID {
		return nil, nil, ErrOwnListing
	}

	var seller accounts.Account
	if err := s.db.WithContext(ctx).Where("id = ?", listing.SellerID).Take(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSellerNotFound
		}
		return nil, nil, fmt.Errorf("load seller: %w", err)
	}
	return &listing, &seller, nil
}

// FeeRateFor is the platform fee applied to a seller's sales.
func (s *Service) FeeRateFor(seller *accounts.Account) float64 {
	if seller == nil {
		return s.defaultFeeRate
	}
	return plans.FeeRateFor(seller.Plan, s.defaultFeeRate)
}

type PurchaseRecord struct {
	ListingID       string
	BuyerID         string
	PaymentIntentID string
	AmountCents     int64  // amount actually charged; zero falls back to the listing price
	FeeCents        *int64 // fee withheld at checkout; nil recomputes from the seller's plan
}

// RecordPurchase stores a settled sale once per payment intent and bumps the
// listing's download counter. created is false when the payment intent was
// already recorded.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseRecord) (purchase *Purchase, created bool, err error) {
	if in.PaymentIntentID == "" || in.ListingID == "" || in.BuyerID == "" {
		return nil, false, ErrInvalidListing
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing Listing
		if err := tx.Where("id = ?", in.ListingID).Take(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrListingNotFound
			}
			return fmt.Errorf("load listing: %w", err)
		}

		var seller accounts.Account
		sellerPlan := ""
		if err := tx.Select("plan").Where("id = ?", listing.SellerID).Take(&seller).Error; err == nil {
			sellerPlan = seller.Plan
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load seller: %w", err)
		}

		amount := in.AmountCents
		if amount <= 0 {
			amount = listing.PriceCents
		}
		var split Split
		if in.FeeCents != nil {
			if *in.FeeCents < 0 || *in.FeeCents > amount {
				return ErrInvalidListing
			}
			split = Split{PlatformFeeCents: *in.FeeCents, SellerPayoutCents: amount - *in.FeeCents}
		} else {
			split, err = SplitAmount(amount, plans.FeeRateFor(sellerPlan, s.defaultFeeRate))
			if err != nil {
				return err
			}
		}

		p := Purchase{
			ListingID:               listing.ID,
			BuyerID:                 in.BuyerID,
			ExternalPaymentIntentID: in.PaymentIntentID,
			AmountCents:             amount,
			PlatformFeeCents:        split.PlatformFeeCents,
			SellerPayoutCents:       split.SellerPayoutCents,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
		if res.Error != nil {
			return fmt.Errorf("insert purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing Purchase
			if err := tx.Where("external_payment_intent_id = ?", in.PaymentIntentID).Take(&existing).Error; err != nil {
				return fmt.Errorf("load existing purchase: %w", err)
			}
			purchase = &existing
			return nil
		}

		err = tx.Model(&Listing{}).
			Where("id = ?", listing.ID).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("increment downloads: %w", err)
		}

		purchase, created = &p, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.WithFields(logrus.Fields{
			"listing_id":   purchase.ListingID,
			"buyer_id":     purchase.BuyerID,
			"amount_cents": purchase.AmountCents,
			"fee_cents":    purchase.PlatformFeeCents,
		}).Info("marketplace purchase recorded")
	}
	return purchase, created, nil
}

// Rate lets a buyer rate a purchased listing once.
func (s *Service) Rate(ctx context.Context, listingID, buyerID string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchases []Purchase
		err := tx.Where("listing_id = ? AND buyer_id = ?", listingID, buyerID).
			Order("created_at ASC").
			Find(&purchases).Error
		if err != nil {
			return fmt.Errorf("load purchases: %w", err)
		}
		if len(purchases) == 0 {
			return ErrNotPurchased
		}
		for _, p := range purchases {
			if p.Rating != nil {
				return ErrAlreadyRated
			}
		}

		res := tx.Model(&Purchase{}).
			Where("id = ? AND rating IS NULL", purchases[0].ID).
			UpdateColumn("rating", rating)
		if res.Error != nil {
			return fmt.Errorf("store rating: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRated
		}

		return tx.Model(&Listing{}).
			Where("id = ?", listingID).
			UpdateColumns(map[string]any{
				"rating_sum":   gorm.Expr("rating_sum + ?", rating),
				"rating_count": gorm.Expr("rating_count + ?", 1),
			}).Error
	})
}

// DownloadKey returns the object key of the listing's asset when the account
// owns the listing or has bought it.
func (s *Service) DownloadKey(ctx context.Context, listingID, accountID string) (string, error) {
	var listing Listing
	err := s.db.WithContext(ctx).Where("id = ?", listingID).Take(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrListingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load listing: %w", err)
	}

	if listing.SellerID != accountID {
		var n int64
		err := s.db.WithContext(ctx).Model(&Purchase{}).
			Where("listing_id = ? AND buyer_id = ?", listingID, accountID).
			Count(&n).Error
		if err != nil {
			return "", fmt.Errorf("check purchase: %w", err)
		}
		if n == 0 {
			return "", ErrNotPurchased
		}
	}

	var project projects.Project
	err = s.db.WithContext(ctx).Select("asset_key").Where("id = ?", listing.ProjectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && project.AssetKey == "") {
		return "", ErrProjectNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	return project.AssetKey, nil
}

type PurchaseFilter struct {
	Offset int
	Limit  int
}

func (s *Service) Purchases(ctx context.Context, f PurchaseFilter) ([]Purchase, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var (
		rows  []Purchase
		total int64
	)
	q := s.db.WithContext(ctx).Model(&Purchase{}).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	return rows, total, nil
}

package marketplace_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newListing(t *testing.T, db *gorm.DB, sellerPlan string, price int64) (*marketplace.Service, *marketplace.Listing, string) {
	t.Helper()
	svc := marketplace.NewService(db, 0.15, testutil.Logger())
	seller := testutil.CreateAccount(t, db, sellerPlan, 0)
	project := testutil.CreateProject(t, db, seller.ID, "projects/"+seller.ID+"/export.png")

	listing, err := svc.Create(context.Background(), seller.ID, marketplace.CreateInput{
		ProjectID:  project.ID,
		Title:      "Slime walk cycle",
		PriceCents: price,
		License:    marketplace.LicenseCommercial,
	})
	require.NoError(t, err)
	return svc, listing, seller.ID
}

func TestCreateRequiresSellingPlan(t *testing.T) {
	db := testutil.NewDB(t)
	svc := marketplace.NewService(db, 0.15, testutil.Logger())
	seller := testutil.CreateAccount(t, db, "free", 0)
	project := testutil.CreateProject(t, db, seller.ID, "k")

	_, err := svc.Create(context.Background(), seller.ID, marketplace.CreateInput{ProjectID: project.ID, Title: "x", PriceCents: 100})
	assert.ErrorIs(t, err, marketplace.ErrPlanRequired)
}

func TestCreateRequiresOwnProject(t *testing.T) {
	db := testutil.NewDB(t)
	svc := marketplace.NewService(db, 0.15, testutil.Logger())
	seller := testutil.CreateAccount(t, db, "pro", 0)
	other := testutil.CreateAccount(t, db, "pro", 0)
	project := testutil.CreateProject(t, db, other.ID, "k")

	_, err := svc.Create(context.Background(), seller.ID, marketplace.CreateInput{ProjectID: project.ID, Title: "x", PriceCents: 100})
	assert.ErrorIs(t, err, marketplace.ErrProjectNotFound)

	_, err = svc.Create(context.Background(), seller.ID, marketplace.CreateInput{ProjectID: project.ID, Title: "x", PriceCents: 100, License: "gpl"})
	assert.ErrorIs(t, err, marketplace.ErrInvalidListing)
}

func TestRecordPurchaseSplitsBySellerPlan(t *testing.T) {
	db := testutil.NewDB(t)
	svc, listing, _ := newListing(t, db, "studio", 1000)
	buyer := testutil.CreateAccount(t, db, "free", 0)

	p, created, err := svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
		ListingID:       listing.ID,
		BuyerID:         buyer.ID,
		PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1000), p.AmountCents)
	assert.Equal(t, int64(100), p.PlatformFeeCents)
	assert.Equal(t, int64(900), p.SellerPayoutCents)

	again, created, err := svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
		ListingID:       listing.ID,
		BuyerID:         buyer.ID,
		PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)

	view, err := svc.Get(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Downloads)
	assert.Equal(t, "Test Account", view.UserName)
}

func TestRecordPurchaseUsesChargedAmount(t *testing.T) {
	db := testutil.NewDB(t)
	svc, listing, _ := newListing(t, db, "pro", 1000)
	buyer := testutil.CreateAccount(t, db, "free", 0)

	p, _, err := svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
		ListingID:       listing.ID,
		BuyerID:         buyer.ID,
		PaymentIntentID: "pi_discounted",
		AmountCents:     799,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(799), p.AmountCents)
	assert.Equal(t, int64(120), p.PlatformFeeCents)
	assert.Equal(t, p.AmountCents, p.PlatformFeeCents+p.SellerPayoutCents)
}

func TestRecordPurchaseKeepsFeeQuotedAtCheckout(t *testing.T) {
	db := testutil.NewDB(t)
	svc, listing, sellerID := newListing(t, db, "pro", 1000)
	buyer := testutil.CreateAccount(t, db, "free", 0)

	// seller upgraded after checkout was opened at the pro rate
	require.NoError(t, db.Table("accounts").Where("id = ?", sellerID).Update("plan", "studio").Error)

	fee := int64(150)
	p, _, err := svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
		ListingID:       listing.ID,
		BuyerID:         buyer.ID,
		PaymentIntentID: "pi_quoted",
		AmountCents:     1000,
		FeeCents:        &fee,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.PlatformFeeCents)
	assert.Equal(t, int64(850), p.SellerPayoutCents)

	tooBig := int64(1001)
	_, _, err = svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
		ListingID:       listing.ID,
		BuyerID:         buyer.ID,
		PaymentIntentID: "pi_bad_fee",
		AmountCents:     1000,
		FeeCents:        &tooBig,
	})
	assert.ErrorIs(t, err, marketplace.ErrInvalidListing)
}

func TestConcurrentPurchasesCountEveryDownload(t *testing.T) {
	const buyers = 16

	db := testutil.NewDB(t)
	svc, listing, _ := newListing(t, db, "pro", 500)

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		buyer := testutil.CreateAccount(t, db, "free", 0)
		wg.Add(1)
		go func(i int, buyerID string) {
			defer wg.Done()
			_, _, err := svc.RecordPurchase(context.Background(), marketplace.PurchaseRecord{
				ListingID:       listing.ID,
				BuyerID:         buyerID,
				PaymentIntentID: fmt.Sprintf("pi_%d", i),
			})
			errs <- err
		}(i, buyer.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var got marketplace.Listing
	require.NoError(t, db.First(&got, "id = ?", listing.ID).Error)
	assert.Equal(t, int64(buyers), got.Downloads)
}

func TestRateOncePerBuyer(t *testing.T) {
	db := testutil.NewDB(t)
	svc, listing, sellerID := newListing(t, db, "pro", 300)
	buyer := testutil.CreateAccount(t, db, "free", 0)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Rate(ctx, listing.ID, buyer.ID, 4), marketplace.ErrNotPurchased)

	_, _, err := svc.RecordPurchase(ctx, marketplace.PurchaseRecord{ListingID: listing.ID, BuyerID: buyer.ID, PaymentIntentID: "pi_r"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Rate(ctx, listing.ID, buyer.ID, 6), marketplace.ErrInvalidRating)
	require.NoError(t, svc.Rate(ctx, listing.ID, buyer.ID, 4))
	assert.ErrorIs(t, svc.Rate(ctx, listing.ID, buyer.ID, 5), marketplace.ErrAlreadyRated)
	assert.ErrorIs(t, svc.Rate(ctx, listing.ID, sellerID, 5), marketplace.ErrNotPurchased)

	view, err := svc.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), view.RatingSum)
	assert.Equal(t, int64(1), view.RatingCount)
	assert.InDelta(t, 4.0, view.AverageRating(), 0.0001)
}

func TestDownloadKeyForOwnerAndBuyerOnly(t *testing.T) {
	db := testutil.NewDB(t)
	svc, listing, sellerID := newListing(t, db, "pro", 300)
	buyer := testutil.CreateAccount(t, db, "free", 0)
	stranger := testutil.CreateAccount(t, db, "free", 0)
	ctx := context.Background()

	key, err := svc.DownloadKey(ctx, listing.ID, sellerID)
	require.NoError(t, err)
	assert.Contains(t, key, "export.png")

	_, err = svc.DownloadKey(ctx, listing.ID, stranger.ID)
	assert.ErrorIs(t, err, marketplace.ErrNotPurchased)

	_, _, err = svc.RecordPurchase(ctx, marketplace.PurchaseRecord{ListingID: listing.ID, BuyerID: buyer.ID, PaymentIntentID: "pi_d"})
	require.NoError(t, err)
	_, err = svc.DownloadKey(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)
}

func TestListSortsAndSearches(t *testing.T) {
	db := testutil.NewDB(t)
	svc, cheap, sellerID := newListing(t, db, "pro", 100)
	project := testutil.CreateProject(t, db, sellerID, "k2")
	pricey, err := svc.Create(context.Background(), sellerID, marketplace.CreateInput{
		ProjectID:  project.ID,
		Title:      "Dungeon tileset",
		PriceCents: 900,
	})
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), marketplace.ListQuery{Sort: "price_high"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, pricey.ID, rows[0].ID)

	rows, err = svc.List(context.Background(), marketplace.ListQuery{Sort: "price_low"})
	require.NoError(t, err)
	assert.Equal(t, cheap.ID, rows[0].ID)

	rows, err = svc.List(context.Background(), marketplace.ListQuery{Query: "tileset"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pricey.ID, rows[0].ID)
}

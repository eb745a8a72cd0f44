package marketplace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	marketapi "sprynt-api/internal/api/marketplace"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/marketplace"
	stripeinfra "sprynt-api/internal/infra/stripe"
	"sprynt-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCheckout struct {
	reqs []stripeinfra.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error) {
	f.reqs = append(f.reqs, req)
	return &stripeinfra.CheckoutSession{ID: "cs_test", URL: "https://pay.example/cs_test"}, nil
}

type fakeSigner struct{}

func (fakeSigner) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://objects.example/" + key + "?ttl=" + ttl.String(), nil
}

type fixture struct {
	db       *gorm.DB
	market   *marketplace.Service
	checkout *fakeCheckout
	router   func(accountID string, h *marketapi.Handler) *gin.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	return fixture{
		db:       db,
		market:   marketplace.NewService(db, 0.15, testutil.Logger()),
		checkout: &fakeCheckout{},
		router: func(accountID string, h *marketapi.Handler) *gin.Engine {
			r := gin.New()
			r.Use(func(c *gin.Context) { c.Set(middleware.AccountIDKey, accountID) })
			r.GET("/marketplace", h.List)
			r.GET("/marketplace/:id", h.Get)
			r.POST("/marketplace", h.Create)
			r.POST("/marketplace/:id/purchase", h.Purchase)
			r.POST("/marketplace/:id/rate", h.Rate)
			r.GET("/marketplace/:id/download", h.Download)
			return r
		},
	}
}

func (f fixture) handler(signer bool) *marketapi.Handler {
	if signer {
		return marketapi.NewHandler(f.market, f.checkout, fakeSigner{}, "https://app.example", testutil.Logger())
	}
	return marketapi.NewHandler(f.market, f.checkout, nil, "https://app.example", testutil.Logger())
}

func (f fixture) listing(t *testing.T, seller accounts.Account, price int64) *marketplace.Listing {
	t.Helper()
	project := testutil.CreateProject(t, f.db, seller.ID, "exports/"+seller.ID+".png")
	l, err := f.market.Create(context.Background(), seller.ID, marketplace.CreateInput{
		ProjectID: project.ID, Title: "Dungeon tiles", PriceCents: price,
	})
	require.NoError(t, err)
	return l
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateRequiresSellingPlan(t *testing.T) {
	f := newFixture(t)
	free := testutil.CreateAccount(t, f.db, "free", 0)
	project := testutil.CreateProject(t, f.db, free.ID, "exports/free.png")

	r := f.router(free.ID, f.handler(true))
	rec := do(r, http.MethodPost, "/marketplace", map[string]any{"projectId": project.ID, "title": "Mine", "priceCents": 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	pro := testutil.CreateAccount(t, f.db, "pro", 0)
	proProject := testutil.CreateProject(t, f.db, pro.ID, "exports/pro.png")
	r = f.router(pro.ID, f.handler(true))
	rec = do(r, http.MethodPost, "/marketplace", map[string]any{"projectId": proProject.ID, "title": "Mine", "priceCents": 100})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodPost, "/marketplace", map[string]any{"projectId": project.ID, "title": "Not mine", "priceCents": 100})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodPost, "/marketplace", map[string]any{"title": "No project"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseOpensCheckoutWithSplit(t *testing.T) {
	f := newFixture(t)
	seller := testutil.CreateAccount(t, f.db, "pro", 0)
	connect := "acct_connect_1"
	require.NoError(t, f.db.Model(&accounts.Account{}).Where("id = ?", seller.ID).Update("payment_connect_id", connect).Error)
	buyer := testutil.CreateAccount(t, f.db, "free", 0)
	l := f.listing(t, seller, 1000)

	rec := do(f.router(buyer.ID, f.handler(true)), http.MethodPost, "/marketplace/"+l.ID+"/purchase", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checkoutUrl":"https://pay.example/cs_test"}`, rec.Body.String())

	require.Len(t, f.checkout.reqs, 1)
	req := f.checkout.reqs[0]
	assert.Equal(t, connect, req.Destination)
	assert.Equal(t, int64(150), req.FeeCents)
	assert.Equal(t, stripeinfra.TypeMarketplacePurchase, req.Metadata[stripeinfra.MetaType])
	assert.Equal(t, buyer.ID, req.Metadata[stripeinfra.MetaBuyerID])
	assert.Equal(t, l.ID, req.Metadata[stripeinfra.MetaListingID])
	assert.Equal(t, "150", req.Metadata[stripeinfra.MetaFeeCents])

	// no purchase row until the webhook confirms payment
	var n int64
	require.NoError(t, f.db.Model(&marketplace.Purchase{}).Count(&n).Error)
	assert.Zero(t, n)

	rec = do(f.router(seller.ID, f.handler(true)), http.MethodPost, "/marketplace/"+l.ID+"/purchase", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFreeListingIsRecordedDirectly(t *testing.T) {
	f := newFixture(t)
	seller := testutil.CreateAccount(t, f.db, "studio", 0)
	buyer := testutil.CreateAccount(t, f.db, "free", 0)
	l := f.listing(t, seller, 0)
	r := f.router(buyer.ID, f.handler(true))

	for i := 0; i < 2; i++ {
		rec := do(r, http.MethodPost, "/marketplace/"+l.ID+"/purchase", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, f.checkout.reqs)

	var n int64
	require.NoError(t, f.db.Model(&marketplace.Purchase{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	rec := do(r, http.MethodGet, "/marketplace/"+l.ID+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://objects.example/exports/"+seller.ID+".png?ttl=15m0s", body.URL)
}

func TestDownloadAccess(t *testing.T) {
	f := newFixture(t)
	seller := testutil.CreateAccount(t, f.db, "pro", 0)
	stranger := testutil.CreateAccount(t, f.db, "free", 0)
	l := f.listing(t, seller, 500)

	rec := do(f.router(stranger.ID, f.handler(true)), http.MethodGet, "/marketplace/"+l.ID+"/download", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(f.router(seller.ID, f.handler(true)), http.MethodGet, "/marketplace/"+l.ID+"/download", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(f.router(seller.ID, f.handler(false)), http.MethodGet, "/marketplace/"+l.ID+"/download", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(f.router(seller.ID, f.handler(true)), http.MethodGet, "/marketplace/missing/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateOncePerBuyer(t *testing.T) {
	f := newFixture(t)
	seller := testutil.CreateAccount(t, f.db, "pro", 0)
	buyer := testutil.CreateAccount(t, f.db, "free", 0)
	l := f.listing(t, seller, 0)
	r := f.router(buyer.ID, f.handler(true))

	rec := do(r, http.MethodPost, "/marketplace/"+l.ID+"/rate", map[string]int{"rating": 4})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/marketplace/"+l.ID+"/purchase", nil).Code)

	rec = do(r, http.MethodPost, "/marketplace/"+l.ID+"/rate", map[string]int{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/marketplace/"+l.ID+"/rate", map[string]int{"rating": 4})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodPost, "/marketplace/"+l.ID+"/rate", map[string]int{"rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodGet, "/marketplace/"+l.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Listing struct {
			AverageRating float64 `json:"averageRating"`
		} `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 4.0, body.Listing.AverageRating, 0.001)
}

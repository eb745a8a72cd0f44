package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sprynt-api/internal/api/billing"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	stripeinfra "sprynt-api/internal/infra/stripe"
	"sprynt-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	checkouts   []stripeinfra.CheckoutRequest
	connectRuns int
	err         error
}

func (f *fakeGateway) CreateCheckout(_ context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.checkouts = append(f.checkouts, req)
	return &stripeinfra.CheckoutSession{ID: "cs_test", URL: "https://checkout.example.test/cs_test"}, nil
}

func (f *fakeGateway) CreatePortal(_ context.Context, customerID, _ string) (string, error) {
	return "https://portal.example.test/" + customerID, nil
}

func (f *fakeGateway) CreateConnectAccount(context.Context, string, string) (string, error) {
	f.connectRuns++
	return "acct_connect_1", nil
}

func (f *fakeGateway) CreateOnboardingLink(_ context.Context, connectID, _, _ string) (string, error) {
	return "https://connect.example.test/" + connectID, nil
}

func setup(t *testing.T) (*gorm.DB, *fakeGateway, *gin.Engine, *string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	gw := &fakeGateway{}
	h := billing.NewHandler(accounts.NewRepository(db), gw, "https://app.example.test", testutil.Logger())

	current := new(string)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.AccountIDKey, *current) })
	r.GET("/plans", h.ListPlans)
	r.POST("/checkout", h.CreateCheckoutSession)
	r.POST("/portal", h.CreateBillingPortal)
	r.POST("/connect", h.ConnectOnboarding)
	return db, gw, r, current
}

func send(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutForPlanAndPack(t *testing.T) {
	db, gw, r, current := setup(t)
	acct := testutil.CreateAccount(t, db, "free", 0)
	*current = acct.ID

	rec := send(r, "/checkout", `{"planId":"pro"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"url":"https://checkout.example.test/cs_test"}`, rec.Body.String())

	rec = send(r, "/checkout", `{"creditPackId":"creator"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, gw.checkouts, 2)
	sub := gw.checkouts[0]
	assert.True(t, sub.Item.Recurring)
	assert.Equal(t, int64(800), sub.Item.UnitAmount)
	assert.Equal(t, "Sprynt Pro", sub.Item.Name)
	assert.Equal(t, map[string]string{"type": "subscription", "planId": "pro", "userId": acct.ID}, sub.Metadata)

	pack := gw.checkouts[1]
	assert.False(t, pack.Item.Recurring)
	assert.Equal(t, int64(999), pack.Item.UnitAmount)
	assert.Equal(t, "200", pack.Metadata["credits"])
	assert.Equal(t, acct.ID, pack.AccountID)
}

func TestCheckoutValidation(t *testing.T) {
	db, gw, r, current := setup(t)
	*current = testutil.CreateAccount(t, db, "free", 0).ID

	assert.Equal(t, http.StatusBadRequest, send(r, "/checkout", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, "/checkout", `{"planId":"free"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, "/checkout", `{"creditPackId":"mega"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, "/checkout", `{"planId":"pro","creditPackId":"starter"}`).Code)

	gw.err = errors.New("card_declined")
	assert.Equal(t, http.StatusBadGateway, send(r, "/checkout", `{"planId":"studio"}`).Code)
}

func TestPortalRequiresCustomer(t *testing.T) {
	db, _, r, current := setup(t)
	acct := testutil.CreateAccount(t, db, "pro", 0)
	*current = acct.ID

	assert.Equal(t, http.StatusNotFound, send(r, "/portal", "").Code)

	require.NoError(t, accounts.NewRepository(db).SetPaymentCustomer(context.Background(), acct.ID, "cus_9"))
	rec := send(r, "/portal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cus_9")
}

func TestConnectCreatesAccountOnce(t *testing.T) {
	db, gw, r, current := setup(t)
	acct := testutil.CreateAccount(t, db, "pro", 0)
	*current = acct.ID

	for i := 0; i < 2; i++ {
		rec := send(r, "/connect", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "https://connect.example.test/acct_connect_1", body["url"])
	}
	assert.Equal(t, 1, gw.connectRuns)
}

package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adminapi "sprynt-api/internal/api/admin"
	aiapi "sprynt-api/internal/api/ai"
	authapi "sprynt-api/internal/api/auth"
	"sprynt-api/internal/api/billing"
	creditsapi "sprynt-api/internal/api/credits"
	marketapi "sprynt-api/internal/api/marketplace"
	"sprynt-api/internal/api/paymentwebhook"
	routes "sprynt-api/internal/app/http"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/domain/payments"
	"sprynt-api/internal/infra/metrics"
	"sprynt-api/internal/infra/ratelimit"
	stripeinfra "sprynt-api/internal/infra/stripe"
	"sprynt-api/internal/infra/token"
	"sprynt-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type silentGenerator struct{ calls int }

func (g *silentGenerator) Generate(context.Context, string, string) (json.RawMessage, error) {
	g.calls++
	return json.RawMessage(`{"pixels":[]}`), nil
}

func TestRouterSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	log := testutil.Logger()
	m := metrics.New()

	codec, err := token.NewCodec("router-secret")
	require.NoError(t, err)

	repo := accounts.NewRepository(db)
	ledger := credits.NewLedger(db, log, m)
	gate := credits.NewGate(ledger)
	market := marketplace.NewService(db, 0.15, log)
	processor := payments.NewProcessor(db, stripeinfra.NewVerifier(testutil.WebhookSecret, time.Minute), ledger, market, log, m)
	gen := &silentGenerator{}

	broke := testutil.CreateAccount(t, db, "free", 0)
	adminAcct := testutil.CreateAccount(t, db, "studio", 0)

	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{
		DB:       db,
		Log:      log,
		Metrics:  m,
		Tokens:   codec,
		Limiter:  ratelimit.NewMemoryLimiter(100, time.Minute),
		Gate:     gate,
		Accounts: repo,
		IsAdmin: func(_ context.Context, id string) (bool, error) {
			return id == adminAcct.ID, nil
		},

		Auth:        authapi.NewHandler(db, repo, ledger, nil, codec, authapi.Config{TokenTTL: time.Hour}, log),
		Credits:     creditsapi.NewHandler(repo, ledger, log),
		AI:          aiapi.NewHandler(gen, gate, ledger, m, log),
		Billing:     billing.NewHandler(repo, nil, "https://app.example", log),
		Webhook:     paymentwebhook.NewHandler(processor, log),
		Marketplace: marketapi.NewHandler(market, nil, nil, "https://app.example", log),
		Admin:       adminapi.NewHandler(repo, ledger, market, log),
	})

	bearer := func(id string) string {
		raw, _, err := codec.Issue(id, time.Hour)
		require.NoError(t, err)
		return "Bearer " + raw
	}
	call := func(method, path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(`{"prompt":"a tree","width":16,"height":16}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"plans are public", http.MethodGet, "/api/payments/plans", "", http.StatusOK},
		{"marketplace browse is public", http.MethodGet, "/api/marketplace", "", http.StatusOK},
		{"balance needs a token", http.MethodGet, "/api/credits/balance", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/credits/balance", "Bearer abc", http.StatusUnauthorized},
		{"balance", http.MethodGet, "/api/credits/balance", bearer(broke.ID), http.StatusOK},
		{"generate without credits", http.MethodPost, "/api/ai/generate", bearer(broke.ID), http.StatusPaymentRequired},
		{"login without provider", http.MethodGet, "/api/auth/login", "", http.StatusServiceUnavailable},
		{"webhook without signature", http.MethodPost, "/api/payments/webhook", "", http.StatusBadRequest},
		{"admin forbidden", http.MethodGet, "/admin/accounts", bearer(broke.ID), http.StatusForbidden},
		{"admin allowed", http.MethodGet, "/admin/accounts", bearer(adminAcct.ID), http.StatusOK},
		{"free plan cannot list", http.MethodPost, "/api/marketplace", bearer(broke.ID), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(tt.method, tt.path, tt.auth)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, gen.calls)

	rec := call(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

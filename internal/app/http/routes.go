package routes

import (
	"net/http"

	adminapi "sprynt-api/internal/api/admin"
	aiapi "sprynt-api/internal/api/ai"
	authapi "sprynt-api/internal/api/auth"
	"sprynt-api/internal/api/billing"
	creditsapi "sprynt-api/internal/api/credits"
	marketapi "sprynt-api/internal/api/marketplace"
	"sprynt-api/internal/api/paymentwebhook"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/plans"
	"sprynt-api/internal/infra/metrics"
	"sprynt-api/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Log      *logrus.Entry
	Metrics  *metrics.Metrics
	Tokens   middleware.TokenVerifier
	Limiter  ratelimit.Limiter
	Gate     *credits.Gate
	Accounts accounts.Repository
	IsAdmin  middleware.AdminCheck

	Auth        *authapi.Handler
	Credits     *creditsapi.Handler
	AI          *aiapi.Handler
	Billing     *billing.Handler
	Webhook     *paymentwebhook.Handler
	Marketplace *marketapi.Handler
	Admin       *adminapi.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	log := d.Log
	authn := middleware.AuthMiddleware(d.Tokens, log)
	limited := middleware.RateLimit(d.Limiter, d.Metrics, log)

	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			log.WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Signature-verified, no bearer token.
	api.POST("/payments/webhook", d.Webhook.Receive)
	api.GET("/payments/plans", d.Billing.ListPlans)

	auth := api.Group("/auth")
	auth.GET("/login", d.Auth.Login)
	auth.GET("/callback", d.Auth.Callback)
	auth.GET("/me", authn, d.Auth.Me)
	auth.POST("/logout", authn, d.Auth.Logout)

	creditsGroup := api.Group("/credits", authn)
	creditsGroup.GET("/balance", d.Credits.Balance)
	creditsGroup.GET("/history", d.Credits.History)

	ai := api.Group("/ai", authn, limited)
	ai.POST("/generate", middleware.RequireCredits(d.Gate, 5, log), d.AI.Generate)
	ai.POST("/interpolate", d.AI.Interpolate)
	ai.POST("/palette", middleware.RequireCredits(d.Gate, 1, log), d.AI.Palette)
	ai.POST("/autocomplete", middleware.RequireCredits(d.Gate, 3, log), d.AI.Autocomplete)

	pay := api.Group("/payments", authn)
	pay.POST("/checkout", limited, d.Billing.CreateCheckoutSession)
	pay.POST("/portal", d.Billing.CreateBillingPortal)
	pay.POST("/connect", d.Billing.ConnectOnboarding)

	market := api.Group("/marketplace")
	market.GET("", d.Marketplace.List)
	market.GET("/:id", d.Marketplace.Get)
	market.POST("", authn, middleware.RequirePlan(d.Accounts, plans.CanSell, log), middleware.SanitizeInput(), d.Marketplace.Create)
	market.POST("/:id/purchase", authn, limited, d.Marketplace.Purchase)
	market.POST("/:id/rate", authn, d.Marketplace.Rate)
	market.GET("/:id/download", authn, d.Marketplace.Download)

	admin := r.Group("/admin", authn, middleware.RequireAdmin(d.IsAdmin, log))
	admin.GET("/accounts", d.Admin.ListAccounts)
	admin.GET("/accounts/:id", d.Admin.GetAccount)
	admin.GET("/purchases", d.Admin.ListPurchases)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sprynt-api/config"
	"sprynt-api/database"
	adminapi "sprynt-api/internal/api/admin"
	aiapi "sprynt-api/internal/api/ai"
	authapi "sprynt-api/internal/api/auth"
	"sprynt-api/internal/api/billing"
	creditsapi "sprynt-api/internal/api/credits"
	marketapi "sprynt-api/internal/api/marketplace"
	"sprynt-api/internal/api/paymentwebhook"
	routes "sprynt-api/internal/app/http"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/domain/payments"
	"sprynt-api/internal/infra/generation"
	"sprynt-api/internal/infra/metrics"
	"sprynt-api/internal/infra/ratelimit"
	"sprynt-api/internal/infra/storage"
	stripeinfra "sprynt-api/internal/infra/stripe"
	"sprynt-api/internal/infra/token"
	"sprynt-api/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component(logger, "main")
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBURL)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	tokens, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		log.WithError(err).Fatal("token codec")
	}

	var limiter ratelimit.Limiter
	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("parse REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, int(cfg.RateLimit.Max), cfg.RateLimit.Window)
	default:
		mem := ratelimit.NewMemoryLimiter(int(cfg.RateLimit.Max), cfg.RateLimit.Window)
		mem.StartCleanup(ctx, cfg.RateLimit.Window)
		limiter = mem
	}

	accountRepo := accounts.NewRepository(db)
	ledger := credits.NewLedger(db, logging.Component(logger, "ledger"), m)
	gate := credits.NewGate(ledger)
	market := marketplace.NewService(db, cfg.MarketplaceFeeRate, logging.Component(logger, "marketplace"))

	stripeClient := stripeinfra.NewClient(cfg.Stripe.SecretKey)
	verifier := stripeinfra.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)
	processor := payments.NewProcessor(db, verifier, ledger, market, logging.Component(logger, "webhook"), m)

	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, AI routes will fail with 502")
	}
	generator := generation.NewGemini(generation.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
		RPS:    cfg.Gemini.RPS,
	}, logging.Component(logger, "generation"))

	var signer storage.URLSigner
	presigner, err := storage.NewPresigner(ctx, storage.Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	switch {
	case err == nil:
		signer = presigner
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn("object storage not configured, downloads disabled")
	default:
		log.WithError(err).Fatal("object storage")
	}

	provider, err := authapi.NewOIDCProvider(ctx, authapi.OIDCConfig{
		Issuer:       cfg.OIDC.Issuer,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
	})
	switch {
	case errors.Is(err, authapi.ErrNotConfigured):
		log.Warn("OIDC not configured, login disabled")
	case err != nil:
		log.WithError(err).Error("oidc discovery failed, login disabled")
	}

	isAdmin := func(ctx context.Context, id string) (bool, error) {
		if cfg.IsAdmin(id) {
			return true, nil
		}
		acct, err := accountRepo.Get(ctx, id)
		if errors.Is(err, accounts.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return acct.IsAdmin(), nil
	}

	httpLog := logging.Component(logger, "http")
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(httpLog, m))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:       db,
		Log:      httpLog,
		Metrics:  m,
		Tokens:   tokens,
		Limiter:  limiter,
		Gate:     gate,
		Accounts: accountRepo,
		IsAdmin:  isAdmin,

		Auth: authapi.NewHandler(db, accountRepo, ledger, provider, tokens, authapi.Config{
			TokenTTL:         cfg.TokenTTL,
			SignupCredits:    cfg.SignupCredits,
			FrontendRedirect: cfg.OIDC.FrontendRedirect,
			SecureCookies:    strings.HasPrefix(cfg.AppURL, "https://"),
		}, logging.Component(logger, "auth")),
		Credits:     creditsapi.NewHandler(accountRepo, ledger, httpLog),
		AI:          aiapi.NewHandler(generator, gate, ledger, m, logging.Component(logger, "ai")),
		Billing:     billing.NewHandler(accountRepo, stripeClient, cfg.AppURL, logging.Component(logger, "billing")),
		Webhook:     paymentwebhook.NewHandler(processor, logging.Component(logger, "webhook")),
		Marketplace: marketapi.NewHandler(market, stripeClient, signer, cfg.AppURL, logging.Component(logger, "marketplace")),
		Admin:       adminapi.NewHandler(accountRepo, ledger, market, logging.Component(logger, "admin")),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
		os.Exit(1)
	}
}

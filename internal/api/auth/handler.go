package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/plans"
	"sprynt-api/internal/infra/token"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const stateCookie = "oauth_state"

type Config struct {
	TokenTTL      time.Duration
	SignupCredits int64
	// FrontendRedirect, when set, receives the token as ?token= after login
	// instead of a JSON body.
	FrontendRedirect string
	SecureCookies    bool
}

type Handler struct {
	db       *gorm.DB
	accounts accounts.Repository
	ledger   *credits.Ledger
	provider IdentityProvider
	tokens   *token.Codec
	cfg      Config
	log      *logrus.Entry
}

// NewHandler wires the auth routes. provider may be nil when no OIDC issuer
// is configured; login then answers 503.
func NewHandler(db *gorm.DB, repo accounts.Repository, ledger *credits.Ledger, provider IdentityProvider, tokens *token.Codec, cfg Config, log *logrus.Entry) *Handler {
	return &Handler{db: db, accounts: repo, ledger: ledger, provider: provider, tokens: tokens, cfg: cfg, log: log}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Login handles GET /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Login is not configured"})
		return
	}
	state, err := randomState()
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 300, "/", "", h.cfg.SecureCookies, true)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback handles GET /api/auth/callback.
func (h *Handler) Callback(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Login is not configured"})
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		apierr.Respond(c, h.log, apierr.Invalid("missing code/state"))
		return
	}
	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		apierr.Respond(c, h.log, apierr.Invalid("invalid oauth state"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.cfg.SecureCookies, true)

	ctx := c.Request.Context()
	claims, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).Warn("oidc exchange failed")
		apierr.Respond(c, h.log, apierr.ErrUnauthorized)
		return
	}

	acct, created, err := findOrCreateAccount(ctx, h.db, h.ledger, claims, h.cfg.SignupCredits)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	if created {
		h.log.WithFields(logrus.Fields{"account_id": acct.ID, "signup_credits": h.cfg.SignupCredits}).Info("account created")
	}

	raw, exp, err := h.tokens.Issue(acct.ID, h.cfg.TokenTTL)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	if h.cfg.FrontendRedirect != "" {
		c.Redirect(http.StatusFound, h.cfg.FrontendRedirect+"?token="+url.QueryEscape(raw))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": acct,
		"session": gin.H{
			"token":     raw,
			"userId":    acct.ID,
			"expiresAt": exp.UnixMilli(),
		},
	})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	plan, _ := plans.Lookup(acct.Plan)
	c.JSON(http.StatusOK, gin.H{"user": acct, "plan": plan})
}

// Logout handles POST /api/auth/logout. Tokens are stateless and stay valid
// until they expire; the client discards its copy.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

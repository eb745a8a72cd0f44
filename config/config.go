package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port       string        `env:"PORT" envDefault:"8080"`
	AppURL     string        `env:"APP_URL" envDefault:"http://localhost:5173"`
	CORSOrigin string        `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`
	DBURL      string        `env:"DB_URL,required"`
	JWTSecret  string        `env:"JWT_SECRET,required"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	Log       Log
	Stripe    Stripe    `envPrefix:"STRIPE_"`
	OIDC      OIDC      `envPrefix:"OIDC_"`
	Gemini    Gemini    `envPrefix:"GEMINI_"`
	S3        S3        `envPrefix:"S3_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`

	RedisURL           string   `env:"REDIS_URL"`
	SignupCredits      int64    `env:"SIGNUP_CREDITS" envDefault:"20"`
	MarketplaceFeeRate float64  `env:"MARKETPLACE_FEE_RATE" envDefault:"0.15"`
	AdminAccountIDs    []string `env:"ADMIN_ACCOUNT_IDS" envSeparator:","`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type Stripe struct {
	SecretKey        string        `env:"SECRET_KEY,required"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET,required"`
	PublishableKey   string        `env:"PUBLISHABLE_KEY"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

type OIDC struct {
	Issuer           string `env:"ISSUER"`
	ClientID         string `env:"CLIENT_ID"`
	ClientSecret     string `env:"CLIENT_SECRET"`
	RedirectURL      string `env:"REDIRECT_URL"`
	FrontendRedirect string `env:"FRONTEND_REDIRECT"`
}

type Gemini struct {
	APIKey string  `env:"API_KEY"`
	Model  string  `env:"MODEL" envDefault:"gemini-2.0-flash"`
	RPS    float64 `env:"RPS" envDefault:"5"`
}

type S3 struct {
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION" envDefault:"auto"`
	Bucket          string `env:"BUCKET"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

type RateLimit struct {
	Backend string        `env:"BACKEND" envDefault:"memory"`
	Max     int64         `env:"MAX" envDefault:"10"`
	Window  time.Duration `env:"WINDOW" envDefault:"60s"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MarketplaceFeeRate < 0 || c.MarketplaceFeeRate > 1 {
		return fmt.Errorf("MARKETPLACE_FEE_RATE must be within [0,1], got %v", c.MarketplaceFeeRate)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	switch strings.ToLower(c.RateLimit.Backend) {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.SignupCredits < 0 {
		return errors.New("SIGNUP_CREDITS must not be negative")
	}
	return nil
}

func (c *Config) IsAdmin(accountID string) bool {
	for _, id := range c.AdminAccountIDs {
		if strings.TrimSpace(id) == accountID {
			return true
		}
	}
	return false
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/env"
)

const defaultJWTSecret = "dev-secret-key-change-in-production"

// Config holds application configuration resolved once at startup.
type Config struct {
	// Application
	AppEnv       string
	Host         string
	Port         string
	PublicDomain string
	FrontendURL  string
	CORSOrigins  []string
	// RateLimitMax is the per-client request budget per minute on /api.
	RateLimitMax int

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Cache
	CacheHost     string
	CachePort     string
	CachePassword string

	// Tokens
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Stripe
	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	StripePriceIDPro     string
	StripeSuccessURL     string
	StripeCancelURL      string

	// Design assistant
	AnthropicAPIKey string

	// OAuth
	GoogleKey    string
	GoogleSecret string

	// Tier limits, -1 means unlimited
	FreeProjectLimit int
	ProProjectLimit  int
	TrialDays        int

	// Mail
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	// Metrics endpoint credentials
	MetricsUser     string
	MetricsPassword string
}

// Load builds the configuration from the env package. SetupEnvFile should run first.
func Load() *Config {
	port := env.GetEnv("APP_PORT", "4000")
	publicDomain := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if publicDomain == "" {
		publicDomain = "http://localhost:" + port
	}

	return &Config{
		AppEnv:       env.GetEnv("APP_ENV", "prod"),
		Host:         env.GetEnv("APP_HOST", "localhost"),
		Port:         port,
		PublicDomain: publicDomain,
		FrontendURL:  strings.TrimRight(env.GetEnv("FRONTEND_URL", publicDomain), "/"),
		CORSOrigins:  env.GetList("CORS_ORIGINS", "http://localhost"),
		RateLimitMax: env.GetInt("RATE_LIMIT_MAX", 120),

		DBHost:     env.GetEnv("DB_HOST", "127.0.0.1"),
		DBPort:     env.GetEnv("DB_PORT", "3306"),
		DBUser:     env.GetEnv("DB_USER", ""),
		DBPassword: env.GetEnv("DB_PASSWORD", ""),
		DBName:     env.GetEnv("DB_NAME", ""),

		CacheHost:     env.GetEnv("CACHE_HOST", "localhost"),
		CachePort:     env.GetEnv("CACHE_PORT", "6379"),
		CachePassword: env.GetEnv("CACHE_PASSWORD", ""),

		JWTSecret:  env.GetEnv("JWT_SECRET", defaultJWTSecret),
		AccessTTL:  env.GetDuration("JWT_ACCESS_TTL", time.Hour),
		RefreshTTL: env.GetDuration("JWT_REFRESH_TTL", 30*24*time.Hour),

		StripeSecretKey:      env.GetEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey: env.GetEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeWebhookSecret:  env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceIDPro:     env.GetEnv("STRIPE_PRICE_ID_PRO", ""),
		StripeSuccessURL:     env.GetEnv("STRIPE_SUCCESS_URL", publicDomain+"/subscription/success"),
		StripeCancelURL:      env.GetEnv("STRIPE_CANCEL_URL", publicDomain+"/subscription/cancel"),

		AnthropicAPIKey: env.GetEnv("ANTHROPIC_API_KEY", ""),

		GoogleKey:    env.GetEnv("GOOGLE_KEY", ""),
		GoogleSecret: env.GetEnv("GOOGLE_SECRET", ""),

		FreeProjectLimit: env.GetInt("FREE_TIER_PROJECT_LIMIT", 3),
		ProProjectLimit:  env.GetInt("PRO_TIER_PROJECT_LIMIT", -1),
		TrialDays:        env.GetInt("TRIAL_DAYS", 14),

		SMTPHost:     env.GetEnv("SMTP_HOST", ""),
		SMTPPort:     env.GetEnv("SMTP_PORT", "587"),
		SMTPUsername: env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword: env.GetEnv("SMTP_PASSWORD", ""),
		SMTPSender:   env.GetEnv("SMTP_SENDER", ""),

		MetricsUser:     env.GetEnv("METRICS_USER", "admin"),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// StripeConfigured mirrors what checkout needs: a usable secret key and the pro price.
func (c *Config) StripeConfigured() bool {
	key := strings.TrimSpace(c.StripeSecretKey)
	if key == "" || key == "sk_test_YOUR_STRIPE_SECRET_KEY_HERE" {
		return false
	}
	return strings.TrimSpace(c.StripePriceIDPro) != ""
}

// GoogleConfigured reports whether Google OAuth credentials are present.
func (c *Config) GoogleConfigured() bool {
	return strings.TrimSpace(c.GoogleKey) != "" && strings.TrimSpace(c.GoogleSecret) != ""
}

// Validate rejects settings that must never reach production.
func (c *Config) Validate() error {
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.FreeProjectLimit < -1 {
		return fmt.Errorf("invalid FREE_TIER_PROJECT_LIMIT %d", c.FreeProjectLimit)
	}
	if c.IsDev() {
		return nil
	}
	if c.JWTSecret == defaultJWTSecret || strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must be changed in production")
	}
	return nil
}

// DSN returns the MySQL data source name.
func (c *Config) DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

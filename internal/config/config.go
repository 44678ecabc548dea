// Package config loads CareerForge server configuration from the
// environment. A .env file is loaded if present but never required.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default free-tier daily limits. Zero disables enforcement entirely.
const (
	defaultFreeGenerationsPerDay = 3
	defaultFreeRefinementsPerDay = 10
)

// Config holds all configuration for the CareerForge server.
type Config struct {
	BindAddress string
	Port        int
	DataDir     string
	BaseURL     string
	AdminKey    string

	// Text-generation provider.
	AnthropicAPIKey string
	Model           string
	MaxTokens       int

	// Stripe billing.
	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string

	// Entitlement/usage backend. Empty RedisURL selects the file-backed
	// store (single-instance deployments only).
	RedisURL string

	// Beta gate.
	BetaInviteCodes string
	BetaMasterCode  string

	// Free-tier usage limits per device per day.
	FreeGenerationsPerDay int
	FreeRefinementsPerDay int

	// Analytics (optional).
	PostHogKey  string
	PostHogHost string

	LogLevel  string
	LogFormat string

	PublicMetrics bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	port, err := envOrDefaultInt("CF_PORT", 8787)
	if err != nil {
		return nil, err
	}
	freeGen, err := envOrDefaultInt("CF_FREE_GENERATIONS_PER_DAY", defaultFreeGenerationsPerDay)
	if err != nil {
		return nil, err
	}
	freeRefine, err := envOrDefaultInt("CF_FREE_REFINEMENTS_PER_DAY", defaultFreeRefinementsPerDay)
	if err != nil {
		return nil, err
	}
	maxTokens, err := envOrDefaultInt("CF_MAX_TOKENS", 8000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BindAddress:           envOrDefault("CF_BIND_ADDRESS", "0.0.0.0"),
		Port:                  port,
		DataDir:               envOrDefault("CF_DATA_DIR", ".data"),
		BaseURL:               strings.TrimSpace(os.Getenv("APP_BASE_URL")),
		AdminKey:              strings.TrimSpace(os.Getenv("CF_ADMIN_KEY")),
		AnthropicAPIKey:       strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		Model:                 envOrDefault("CF_MODEL", "claude-sonnet-4-5-20250929"),
		MaxTokens:             maxTokens,
		StripeSecretKey:       strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripePriceID:         strings.TrimSpace(os.Getenv("STRIPE_PRICE_ID_PRO")),
		StripeWebhookSecret:   strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		RedisURL:              strings.TrimSpace(os.Getenv("REDIS_URL")),
		BetaInviteCodes:       strings.TrimSpace(os.Getenv("BETA_INVITE_CODES")),
		BetaMasterCode:        strings.TrimSpace(os.Getenv("BETA_MASTER_CODE")),
		FreeGenerationsPerDay: freeGen,
		FreeRefinementsPerDay: freeRefine,
		PostHogKey:            strings.TrimSpace(os.Getenv("POSTHOG_API_KEY")),
		PostHogHost:           envOrDefault("POSTHOG_HOST", "https://us.i.posthog.com"),
		LogLevel:              envOrDefault("CF_LOG_LEVEL", "info"),
		LogFormat:             envOrDefault("CF_LOG_FORMAT", "auto"),
		PublicMetrics:         envOrDefaultBool("CF_PUBLIC_METRICS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks structural validity. Feature-level misconfiguration
// (missing Stripe key, missing beta codes) deliberately stays a per-request
// error so the rest of the app keeps serving.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("CF_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.FreeGenerationsPerDay < 0 {
		return fmt.Errorf("CF_FREE_GENERATIONS_PER_DAY must not be negative, got %d", c.FreeGenerationsPerDay)
	}
	if c.FreeRefinementsPerDay < 0 {
		return fmt.Errorf("CF_FREE_REFINEMENTS_PER_DAY must not be negative, got %d", c.FreeRefinementsPerDay)
	}
	if c.BaseURL != "" {
		if _, err := c.Origin(); err != nil {
			return err
		}
	}
	return nil
}

// Origin returns the scheme://host origin of the configured base URL.
// Success/cancel/return URLs handed to Stripe are always built from this
// origin rather than from caller-supplied values.
func (c *Config) Origin() (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return "", fmt.Errorf("missing APP_BASE_URL")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("APP_BASE_URL must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("APP_BASE_URL must use http or https scheme")
	}
	if u.Host == "" {
		return "", fmt.Errorf("APP_BASE_URL must include a host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// UseRedis reports whether the remote key-value backend is configured.
func (c *Config) UseRedis() bool {
	return c.RedisURL != ""
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the copymint backend.
type Config struct {
	HTTPPort  string
	Database  DatabaseConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Billing   BillingConfig
	Shopify   ShopifyConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds generation-provider settings
type ProviderConfig struct {
	// Backend selects the provider implementation: "gemini" or "openai".
	Backend string
	// Model is the default model identifier passed to the provider.
	Model string
	// RequestTimeout bounds a single provider call. The failover loop itself
	// applies no extra deadline; callers impose one via context if needed.
	RequestTimeout time.Duration
	OpenAIAPIKey   string
}

// BillingConfig holds metering and billing settings
type BillingConfig struct {
	// Enforce controls whether billable overflow blocks the request when no
	// active usage plan exists. The managed-pricing deployment keeps this off:
	// charges are logged, never executed.
	Enforce       bool
	FreeCredits   int
	UnitPriceUSD  float64
	ChargeTimeout time.Duration
}

// ShopifyConfig holds platform credentials for webhooks, session tokens and
// the read-only subscription query.
type ShopifyConfig struct {
	APIKey     string
	APISecret  string
	AdminURL   string
	AdminToken string
	APIVersion string
}

// RateLimitConfig holds per-shop generation rate limits
type RateLimitConfig struct {
	Enabled   bool
	PerMinute int
}

// AuditConfig holds settings for the async generation-audit worker
type AuditConfig struct {
	Backend string // "memory" or "redis"
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables. A .env file is loaded
// first when present so local development matches deployed behavior.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	apiSecret := os.Getenv("SHOPIFY_API_SECRET")
	if apiSecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}

	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			Backend:        getEnvString("GENERATION_PROVIDER", "gemini"),
			Model:          getEnvString("GENERATION_MODEL", "gemini-2.5-flash"),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
			OpenAIAPIKey:   getEnvString("OPENAI_API_KEY", ""),
		},
		Billing: BillingConfig{
			Enforce:       getEnvBool("BILLING_ENFORCE", false),
			FreeCredits:   getEnvInt("FREE_CREDITS", 30),
			UnitPriceUSD:  getEnvFloat("USAGE_UNIT_PRICE_USD", 0.015),
			ChargeTimeout: getEnvDuration("BILLING_CHARGE_TIMEOUT", 10*time.Second),
		},
		Shopify: ShopifyConfig{
			APIKey:     getEnvString("SHOPIFY_API_KEY", ""),
			APISecret:  apiSecret,
			AdminURL:   getEnvString("SHOPIFY_ADMIN_URL", ""),
			AdminToken: getEnvString("SHOPIFY_ADMIN_TOKEN", ""),
			APIVersion: getEnvString("SHOPIFY_API_VERSION", "2025-07"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Audit: AuditConfig{
			Backend: getEnvString("AUDIT_QUEUE_BACKEND", "memory"),
		},
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Config struct {
	Store    StoreConfig
	DB       DBConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Jobs     JobsConfig
	LogLevel string
}

type StoreConfig struct {
	// Driver is one of postgres, mongo or memory.
	Driver string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// DSN overrides the individual fields when set.
	DSN string
}

// URL returns the connection string as a postgres:// URL.
func (c DBConfig) URL() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type CheckoutConfig struct {
	ShippingFee       decimal.Decimal
	CommissionPolicy  string
	CallTimeout       time.Duration
	IdempotencyTTL    time.Duration
	BrandFallbackPath string
}

type HTTPConfig struct {
	Port string
	// RateLimit uses the limiter format, e.g. "60-M".
	RateLimit      string
	AllowedOrigins []string
}

type GRPCConfig struct {
	Port string
}

type JobsConfig struct {
	OverdueSchedule string
	OverdueAfter    time.Duration
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("REDIS_DB: %w", err)
	}
	fee, err := decimal.NewFromString(getEnv("CHECKOUT_SHIPPING_FEE", "10.00"))
	if err != nil {
		return Config{}, fmt.Errorf("CHECKOUT_SHIPPING_FEE: %w", err)
	}
	if fee.IsNegative() {
		return Config{}, fmt.Errorf("CHECKOUT_SHIPPING_FEE must not be negative")
	}

	cfg := Config{
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			DSN:      getEnv("STORE_DSN", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "storefront"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Enabled:  getEnv("REDIS_ENABLED", "true") == "true",
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			ShippingFee:       fee,
			CommissionPolicy:  strings.ToLower(getEnv("CHECKOUT_COMMISSION_POLICY", "payout")),
			BrandFallbackPath: getEnv("BRAND_FALLBACK_PATH", ""),
		},
		HTTP: HTTPConfig{
			Port:           getEnv("HTTP_PORT", "8080"),
			RateLimit:      getEnv("HTTP_RATE_LIMIT", "60-M"),
			AllowedOrigins: splitList(getEnv("HTTP_ALLOWED_ORIGINS", "*")),
		},
		GRPC: GRPCConfig{
			Port: getEnv("GRPC_PORT", "50060"),
		},
		Jobs: JobsConfig{
			OverdueSchedule: getEnv("JOBS_OVERDUE_SCHEDULE", "@midnight"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Auth.TokenTTL, err = getDuration("JWT_TOKEN_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.Checkout.CallTimeout, err = getDuration("CHECKOUT_CALL_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.Checkout.IdempotencyTTL, err = getDuration("CHECKOUT_IDEMPOTENCY_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.Jobs.OverdueAfter, err = getDuration("JOBS_OVERDUE_AFTER", "72h"); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, mongo or memory, got %q", c.Store.Driver)
	}
	switch c.Checkout.CommissionPolicy {
	case "payout", "discount":
	default:
		return fmt.Errorf("CHECKOUT_COMMISSION_POLICY must be payout or discount, got %q", c.Checkout.CommissionPolicy)
	}
	if c.Checkout.CallTimeout <= 0 {
		return fmt.Errorf("CHECKOUT_CALL_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

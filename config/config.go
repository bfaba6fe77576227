package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Email    EmailConfig
	AWS      AWSConfig
	Pricing  PricingConfig
}

// StripeConfig for card payments. An empty SecretKey means the gateway is not
// configured and payment endpoints degrade to a "payment unavailable" response.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// EmailConfig for SMTP delivery by the notification worker.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the S3 bucket for roster exports.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	PresignExpireMinutes int
}

// CountryPricing is one entry of the country fee table. All amounts are in
// integer minor units (cents).
type CountryPricing struct {
	Name                  string `json:"name"`
	Currency              string `json:"currency"`
	PerStudentFeeCents    int64  `json:"per_student_fee_cents"`
	CertificationFeeCents int64  `json:"certification_fee_cents"`
}

// PricingConfig is the injected country fee table plus resolution policy.
// Keys are normalized (lower-case) country names; Aliases map alternate
// spellings onto table keys (e.g. "uae" -> "dubai").
type PricingConfig struct {
	Countries           map[string]CountryPricing `json:"countries"`
	Aliases             map[string]string         `json:"aliases"`
	DefaultCountry      string                    `json:"default_country"`
	AllowDefaultCountry bool                      `json:"allow_default_country"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	pricing, err := loadPricing()
	if err != nil {
		return nil, fmt.Errorf("load pricing table: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/arena?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "arena"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Arena Sports"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", "arena-roster-exports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Pricing: pricing,
	}
	return cfg, nil
}

// DefaultPricing returns the built-in country fee table. Deployments can
// replace it wholesale via PRICING_TABLE_JSON.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		Countries: map[string]CountryPricing{
			"dubai": {
				Name:                  "Dubai (UAE)",
				Currency:              "aed",
				PerStudentFeeCents:    5500,
				CertificationFeeCents: 20000,
			},
			"malaysia": {
				Name:                  "Malaysia",
				Currency:              "myr",
				PerStudentFeeCents:    0,
				CertificationFeeCents: 0,
			},
			"india": {
				Name:                  "India",
				Currency:              "inr",
				PerStudentFeeCents:    50000,
				CertificationFeeCents: 100000,
			},
			"singapore": {
				Name:                  "Singapore",
				Currency:              "sgd",
				PerStudentFeeCents:    2500,
				CertificationFeeCents: 8000,
			},
		},
		Aliases: map[string]string{
			"uae":                  "dubai",
			"united arab emirates": "dubai",
		},
		DefaultCountry:      "dubai",
		AllowDefaultCountry: false,
	}
}

func loadPricing() (PricingConfig, error) {
	pricing := DefaultPricing()
	if raw := os.Getenv("PRICING_TABLE_JSON"); raw != "" {
		var override PricingConfig
		if err := json.Unmarshal([]byte(raw), &override); err != nil {
			return PricingConfig{}, fmt.Errorf("parse PRICING_TABLE_JSON: %w", err)
		}
		if len(override.Countries) == 0 {
			return PricingConfig{}, fmt.Errorf("PRICING_TABLE_JSON has no countries")
		}
		pricing = override
	}
	if v := os.Getenv("PRICING_ALLOW_DEFAULT_COUNTRY"); v != "" {
		pricing.AllowDefaultCountry = v == "true" || v == "1"
	}
	return pricing, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

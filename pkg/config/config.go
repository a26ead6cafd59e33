package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret      = "dev_secret"
	devReceiptsSecret = "dev_receipts_secret"
)

// ErrInsecureSecret is returned when production runs with an empty or
// development signing secret.
var ErrInsecureSecret = errors.New("signing secret must be set in production")

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	SiteURL   string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Catalog  CatalogConfig
	Email    EmailConfig
	Events   EventsConfig
	Receipts ReceiptsConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig verifies bearer tokens minted by the hosted identity provider.
type AuthConfig struct {
	JWTSecret string
	Audience  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StripeConfig holds payment processor credentials.
type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	FreeClassPrice  string
	FreeClassCoupon string
}

// CheckoutConfig tunes the seat hold flow.
type CheckoutConfig struct {
	HoldTTL           time.Duration
	HoldSweepInterval time.Duration
	// PriceCredits maps a price id to the lesson credits a purchase grants.
	PriceCredits map[string]int
}

// CatalogConfig tunes the public cohort listing.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// EmailConfig configures transactional email delivery.
type EmailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	Workers        int
	MaxRetries     int
}

// EventsConfig configures the domain event broker; empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// ReceiptsConfig configures signed receipt links.
type ReceiptsConfig struct {
	// BaseURL is the public API root the receipt links point at.
	BaseURL    string
	LinkSecret string
	LinkTTL    time.Duration
}

// AdminConfig lists the staff allowed on admin routes.
type AdminConfig struct {
	Emails []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.SiteURL = strings.TrimRight(v.GetString("SITE_URL"), "/")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("AUTH_JWT_SECRET"),
		Audience:  v.GetString("AUTH_JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Stripe = StripeConfig{
		SecretKey:       v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
		FreeClassPrice:  v.GetString("STRIPE_FREE_CLASS_PRICE"),
		FreeClassCoupon: v.GetString("STRIPE_FREE_CLASS_COUPON"),
	}

	priceCredits, err := ParsePriceCredits(v.GetString("PRICE_CREDITS"))
	if err != nil {
		return nil, err
	}
	cfg.Checkout = CheckoutConfig{
		HoldTTL:           parseDuration(v.GetString("CHECKOUT_HOLD_TTL"), 15*time.Minute),
		HoldSweepInterval: parseDuration(v.GetString("HOLD_SWEEP_INTERVAL"), 0),
		PriceCredits:      priceCredits,
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("COHORTS_CACHE_TTL"), 30*time.Second),
	}

	cfg.Email = EmailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("EMAIL_FROM_NAME"),
		FromAddress:    v.GetString("EMAIL_FROM_ADDRESS"),
		Workers:        v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:     v.GetInt("NOTIFY_MAX_RETRIES"),
	}

	cfg.Events = EventsConfig{
		AMQPURL:  v.GetString("AMQP_URL"),
		Exchange: v.GetString("AMQP_EXCHANGE"),
	}

	cfg.Receipts = ReceiptsConfig{
		BaseURL:    strings.TrimRight(v.GetString("RECEIPT_BASE_URL"), "/"),
		LinkSecret: v.GetString("RECEIPT_LINK_SECRET"),
		LinkTTL:    parseDuration(v.GetString("RECEIPT_LINK_TTL"), 30*24*time.Hour),
	}

	cfg.Admin = AdminConfig{Emails: lowerAll(splitAndTrim(v.GetString("ADMIN_EMAILS")))}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects development secrets outside development.
func (c *Config) Validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == devJWTSecret {
		return fmt.Errorf("AUTH_JWT_SECRET: %w", ErrInsecureSecret)
	}
	if c.Receipts.LinkSecret == "" || c.Receipts.LinkSecret == devReceiptsSecret {
		return fmt.Errorf("RECEIPT_LINK_SECRET: %w", ErrInsecureSecret)
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET: %w", ErrInsecureSecret)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SITE_URL", "http://localhost:3000")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lingua")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_JWT_SECRET", devJWTSecret)
	v.SetDefault("AUTH_JWT_AUDIENCE", "authenticated")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_FREE_CLASS_PRICE", "")
	v.SetDefault("STRIPE_FREE_CLASS_COUPON", "")

	v.SetDefault("CHECKOUT_HOLD_TTL", "15m")
	v.SetDefault("HOLD_SWEEP_INTERVAL", "")
	v.SetDefault("PRICE_CREDITS", "")
	v.SetDefault("COHORTS_CACHE_TTL", "30s")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "Lingua By")
	v.SetDefault("EMAIL_FROM_ADDRESS", "support@linguaby.org")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "lingua.events")

	v.SetDefault("RECEIPT_BASE_URL", "http://localhost:8080/api/v1")
	v.SetDefault("RECEIPT_LINK_SECRET", devReceiptsSecret)
	v.SetDefault("RECEIPT_LINK_TTL", "720h")

	v.SetDefault("ADMIN_EMAILS", "")
}

// ParsePriceCredits reads "price_a=5,price_b=0" into a lookup table.
func ParsePriceCredits(raw string) (map[string]int, error) {
	out := make(map[string]int)
	for _, pair := range splitAndTrim(raw) {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New("PRICE_CREDITS entries must look like price_id=credits")
		}
		credits, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || credits < 0 {
			return nil, errors.New("PRICE_CREDITS credits must be a non-negative integer: " + pair)
		}
		out[key] = credits
	}
	return out, nil
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func lowerAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToLower(value)
	}
	return values
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Debug              bool
	Port               string
	StoreDriver        string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	TokenTTL           time.Duration
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	CurrencyCode      string
	StoreTimezone     *time.Location
	LoyaltyPointValue decimal.Decimal
	LoyaltyEarnRate   decimal.Decimal
	PaymentTolerance  decimal.Decimal
	CouponStrictMode  bool
	SeedDemoData      bool

	IdempotencyTTL time.Duration
	LockTTL        time.Duration
	AuditEnabled   bool

	// RateLimitStrategy is "fixed" (ulule limiter) or "sliding" (Redis sorted sets).
	RateLimitStrategy string
	RateLimitWindow   time.Duration
	RateLimitMax      int

	Obs Observability
}

// Observability groups the OBS_* settings.
type Observability struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	e := source{k: k}

	cfg := &Config{
		AppEnv:             e.str("APP_ENV", "development"),
		Debug:              e.flag("APP_DEBUG", false),
		Port:               e.str("PORT", "8080"),
		StoreDriver:        strings.ToLower(e.str("STORE_DRIVER", DriverMemory)),
		DatabaseURL:        e.str("DATABASE_URL", ""),
		RedisURL:           e.str("REDIS_URL", ""),
		JWTSecret:          e.str("JWT_SECRET", ""),
		JWTIssuer:          e.str("JWT_ISSUER", "grocery-pos"),
		JWTAudience:        e.str("JWT_AUDIENCE", ""),
		TokenTTL:           e.duration("JWT_TTL", 12*time.Hour),
		MaxBodyBytes:       int64(e.integer("MAX_BODY_BYTES", 1<<20)),
		CORSAllowedOrigins: e.list("CORS_ALLOWED_ORIGINS"),
		CurrencyCode:       strings.ToUpper(e.str("CURRENCY_CODE", "USD")),
		CouponStrictMode:   e.flag("COUPON_STRICT_MODE", false),
		SeedDemoData:       e.flag("SEED_DEMO_DATA", false),
		IdempotencyTTL:     e.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		LockTTL:            e.duration("LOCK_TTL", 15*time.Second),
		AuditEnabled:       e.flag("AUDIT_ENABLED", true),
		RateLimitStrategy:  strings.ToLower(e.str("RATE_LIMIT_STRATEGY", "fixed")),
		RateLimitWindow:    e.duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:       e.integer("RATE_LIMIT_MAX", 120),
		Obs: Observability{
			LogFormat:        e.str("OBS_LOG_FORMAT", "json"),
			LogLevel:         e.str("OBS_LOG_LEVEL", "info"),
			MetricsNamespace: e.str("OBS_METRICS_NAMESPACE", "pos"),
			MetricsEnabled:   e.flag("OBS_ENABLE_PROMETHEUS", true),
			MetricsBuckets:   e.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:   e.flag("OBS_ENABLE_TRACING", false),
			TracingExporter:  e.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:     e.str("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:    e.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
			PprofEnabled:     e.flag("OBS_ENABLE_PPROF", false),
			PprofUser:        e.str("OBS_PPROF_USER", ""),
			PprofPass:        e.str("OBS_PPROF_PASS", ""),
		},
	}

	var err error
	if cfg.StoreTimezone, err = time.LoadLocation(e.str("STORE_TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE: %w", err)
	}
	if cfg.LoyaltyPointValue, err = e.decimal("LOYALTY_POINT_VALUE", "0.01"); err != nil {
		return nil, err
	}
	if cfg.LoyaltyEarnRate, err = e.decimal("LOYALTY_EARN_RATE", "0.01"); err != nil {
		return nil, err
	}
	if cfg.PaymentTolerance, err = e.decimal("PAYMENT_TOLERANCE", "0.01"); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}
	if c.RateLimitStrategy != "fixed" && c.RateLimitStrategy != "sliding" {
		return fmt.Errorf("RATE_LIMIT_STRATEGY %q is not supported", c.RateLimitStrategy)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !c.LoyaltyPointValue.IsPositive() || !c.LoyaltyEarnRate.IsPositive() {
		return errors.New("loyalty point value and earn rate must be positive")
	}
	if c.PaymentTolerance.IsNegative() {
		return errors.New("PAYMENT_TOLERANCE must not be negative")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// source reads typed settings from koanf. Blank or unparsable values fall
// back to the default, except decimals which are money and must be exact.
type source struct {
	k *koanf.Koanf
}

func (s source) str(key, def string) string {
	if v := strings.TrimSpace(s.k.String(key)); v != "" {
		return v
	}
	return def
}

func (s source) list(key string) []string {
	var out []string
	for _, part := range strings.Split(s.k.String(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s source) flag(key string, def bool) bool {
	switch strings.ToLower(s.str(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return def
}

func (s source) integer(key string, def int) int {
	if n, err := strconv.Atoi(s.str(key, "")); err == nil {
		return n
	}
	return def
}

func (s source) float(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(s.str(key, ""), 64); err == nil {
		return f
	}
	return def
}

func (s source) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.str(key, "")); err == nil {
		return d
	}
	return def
}

func (s source) decimal(key, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s.str(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

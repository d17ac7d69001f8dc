package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-sewa/internal/latefee"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string

	CurrencyCode string
	TaxRateBPS   int
	DayCount     pricing.DayCountPolicy
	Timezone     string

	CartTTL           time.Duration
	HoldTTL           time.Duration
	HoldSweepInterval time.Duration
	HoldSweepBatch    int
	LockTTL           time.Duration
	ReserveRateLimit  string

	LateFeeEnabled    bool
	LateFeeType       latefee.FeeType
	LateFeePercentBPS int32
	LateFeeFlatAmount pricing.Money
	LateFeeGrace      time.Duration

	DBMaxConns int32
	DBMinConns int32
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),

		CurrencyCode: valueOrDefault(k.String("CURRENCY_CODE"), "IDR"),
		TaxRateBPS:   parseInt(k.String("PRICING_TAX_RATE_BPS"), 0),
		DayCount:     parseDayCount(k.String("PRICING_DAY_COUNT")),
		Timezone:     valueOrDefault(k.String("PRICING_TIMEZONE"), "UTC"),

		CartTTL:           parseDuration(k.String("CART_TTL"), "30m"),
		HoldTTL:           parseDuration(k.String("HOLD_TTL"), "15m"),
		HoldSweepInterval: parseDuration(k.String("HOLD_SWEEP_INTERVAL"), "1m"),
		HoldSweepBatch:    parseInt(k.String("HOLD_SWEEP_BATCH"), 100),
		LockTTL:           parseDuration(k.String("LOCK_TTL"), "10s"),
		ReserveRateLimit:  valueOrDefault(k.String("RESERVE_RATE_LIMIT"), "30-M"),

		LateFeeEnabled:    parseBool(k.String("LATE_FEE_ENABLED")),
		LateFeeType:       parseFeeType(k.String("LATE_FEE_TYPE")),
		LateFeePercentBPS: int32(parseInt(k.String("LATE_FEE_PERCENT_BPS"), 1000)),
		LateFeeFlatAmount: pricing.Money(parseInt(k.String("LATE_FEE_FLAT_AMOUNT"), 0)),
		LateFeeGrace:      parseDuration(k.String("LATE_FEE_GRACE_PERIOD"), "2h"),

		DBMaxConns: int32(parseInt(k.String("DB_MAX_CONNS"), 10)),
		DBMinConns: int32(parseInt(k.String("DB_MIN_CONNS"), 2)),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.TaxRateBPS < 0 || cfg.TaxRateBPS > 10000 {
		return nil, errors.New("PRICING_TAX_RATE_BPS must be between 0 and 10000")
	}

	return cfg, nil
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

// Location resolves the pricing timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// LateFeePolicy assembles the late fee policy from configuration.
func (c *Config) LateFeePolicy() latefee.Policy {
	return latefee.Policy{
		Enabled:     c.LateFeeEnabled,
		GracePeriod: c.LateFeeGrace,
		Type:        c.LateFeeType,
		PercentBps:  c.LateFeePercentBPS,
		FlatAmount:  c.LateFeeFlatAmount,
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseDayCount(value string) pricing.DayCountPolicy {
	policy := pricing.DayCountPolicy(strings.ToLower(strings.TrimSpace(value)))
	if !policy.Valid() {
		return pricing.DayCountRolling
	}
	return policy
}

func parseFeeType(value string) latefee.FeeType {
	t := latefee.FeeType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return latefee.FeePercentage
	}
	return t
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

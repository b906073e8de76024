package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	CORS       CORSConfig
	Logging    LoggingConfig
	Cache      CacheConfig
	Lock       LockConfig
	MarketData MarketDataConfig
	Scheduler  SchedulerConfig
	Security   SecurityConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig selects the log level and output format ("console" or "json").
type LoggingConfig struct {
	Level  string
	Format string
}

// CacheConfig holds the freshness windows for cached prices and exchange rates.
// A cached value older than its TTL is stale and must be re-fetched before use.
type CacheConfig struct {
	StockTTL        time.Duration // stock, etf and mutual_fund
	CryptoTTL       time.Duration
	ExchangeRateTTL time.Duration
}

// LockConfig bounds the concurrency guard: how long a caller waits for a
// position or currency-pair lock, how long a holder may keep it before it
// expires, and the initial polling interval.
type LockConfig struct {
	WaitTimeout  time.Duration
	MaxHold      time.Duration
	PollInterval time.Duration
}

// MarketDataConfig configures the price and exchange-rate provider client.
type MarketDataConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimit      float64 // requests per second, per process
	QuotaPerMinute int     // requests per minute, shared by every process on the database
}

// SchedulerConfig configures the periodic refresh of stale prices and rates.
type SchedulerConfig struct {
	Enabled         bool
	RefreshSchedule string // cron expression
}

// SecurityConfig holds the fernet key used to encrypt secrets at rest.
type SecurityConfig struct {
	EncryptionKey string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	p := &parser{}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/portfolio_valuation.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Cache: CacheConfig{
			StockTTL:        p.durationEnv("PRICE_TTL_STOCK", 15*time.Minute),
			CryptoTTL:       p.durationEnv("PRICE_TTL_CRYPTO", 5*time.Minute),
			ExchangeRateTTL: p.durationEnv("RATE_TTL", time.Hour),
		},
		Lock: LockConfig{
			WaitTimeout:  p.durationEnv("LOCK_WAIT_TIMEOUT", 5*time.Second),
			MaxHold:      p.durationEnv("LOCK_MAX_HOLD", 10*time.Second),
			PollInterval: p.durationEnv("LOCK_POLL_INTERVAL", 10*time.Millisecond),
		},
		MarketData: MarketDataConfig{
			BaseURL:        getEnv("MARKETDATA_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:        p.durationEnv("MARKETDATA_TIMEOUT", 10*time.Second),
			RateLimit:      p.floatEnv("MARKETDATA_RATE_LIMIT", 2),
			QuotaPerMinute: p.intEnv("MARKETDATA_QUOTA_PER_MINUTE", 60),
		},
		Scheduler: SchedulerConfig{
			Enabled:         p.boolEnv("SCHEDULER_ENABLED", true),
			RefreshSchedule: getEnv("REFRESH_SCHEDULE", "*/5 * * * *"),
		},
		Security: SecurityConfig{
			EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	if config.Lock.MaxHold < config.Lock.WaitTimeout {
		p.errs = append(p.errs, fmt.Errorf("LOCK_MAX_HOLD (%s) must not be shorter than LOCK_WAIT_TIMEOUT (%s)",
			config.Lock.MaxHold, config.Lock.WaitTimeout))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every malformed value so Load can report them together.
type parser struct {
	errs []error
}

func (p *parser) durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return d
}

func (p *parser) intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid positive integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) floatEnv(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid positive number %q", key, raw))
		return def
	}
	return v
}

func (p *parser) boolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return v
}

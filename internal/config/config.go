// Package config defines the top-level configuration for the scalpbot engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCALPBOT_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Engine   EngineConfig   `toml:"engine"`
	Risk     RiskConfig     `toml:"risk"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds MEXC API endpoints and credentials.
type ExchangeConfig struct {
	ApiKey         string `toml:"api_key"`
	ApiSecret      string `toml:"api_secret"`
	BaseURL        string `toml:"base_url"`
	WsURL          string `toml:"ws_url"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
}

// EngineConfig holds order-path and monitoring parameters.
type EngineConfig struct {
	Symbols []string `toml:"symbols"`

	// Rate limit for order-related calls: RateLimitCalls per RateLimitWindow.
	RateLimitCalls         int `toml:"rate_limit_calls"`
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`

	// Monitor cadences, in milliseconds.
	FillPollMs  int `toml:"fill_poll_ms"`
	PricePollMs int `toml:"price_poll_ms"`

	// Transient-error retry policy for gateway calls.
	MaxRetries    int `toml:"max_retries"`
	BackoffBaseMs int `toml:"backoff_base_ms"`

	// PriceCacheTTLMs bounds how stale a cached tick may be before the
	// monitor falls back to a REST price read.
	PriceCacheTTLMs int `toml:"price_cache_ttl_ms"`
}

// RiskConfig holds the account-level risk limits.
type RiskConfig struct {
	MaxDailyLoss         float64 `toml:"max_daily_loss"`
	MaxConsecutiveLosses int     `toml:"max_consecutive_losses"`
	MaxPositionNotional  float64 `toml:"max_position_notional"`
	QuoteAsset           string  `toml:"quote_asset"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	SharedRateLimit bool   `toml:"shared_rate_limit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the outcome
// archive.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// Defaults returns a Config populated with safe defaults. Load merges the
// TOML file on top of these values.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL:        "https://api.mexc.com",
			WsURL:          "wss://wbs-api.mexc.com/ws",
			RequestTimeout: 10,
		},
		Engine: EngineConfig{
			Symbols:                []string{"BTCUSDT"},
			RateLimitCalls:         5,
			RateLimitWindowSeconds: 1,
			FillPollMs:             250,
			PricePollMs:            1000,
			MaxRetries:             3,
			BackoffBaseMs:          200,
			PriceCacheTTLMs:        2000,
		},
		Risk: RiskConfig{
			MaxDailyLoss:         100,
			MaxConsecutiveLosses: 5,
			MaxPositionNotional:  1000,
			QuoteAsset:           "USDT",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "trade", "feed":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if strings.TrimSpace(c.Exchange.BaseURL) == "" {
		return fmt.Errorf("config: exchange.base_url is required")
	}
	if c.Mode == "trade" {
		if c.Exchange.ApiKey == "" || c.Exchange.ApiSecret == "" {
			return fmt.Errorf("config: exchange credentials are required in trade mode")
		}
	}

	if c.Engine.RateLimitCalls <= 0 {
		return fmt.Errorf("config: engine.rate_limit_calls must be positive")
	}
	if c.Engine.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("config: engine.rate_limit_window_seconds must be positive")
	}
	if c.Engine.FillPollMs <= 0 || c.Engine.PricePollMs <= 0 {
		return fmt.Errorf("config: engine poll intervals must be positive")
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("config: engine.symbols must name at least one symbol")
	}

	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("config: risk.max_daily_loss must be positive")
	}
	if c.Risk.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("config: risk.max_consecutive_losses must be positive")
	}
	if c.Risk.MaxPositionNotional <= 0 {
		return fmt.Errorf("config: risk.max_position_notional must be positive")
	}
	if strings.TrimSpace(c.Risk.QuoteAsset) == "" {
		return fmt.Errorf("config: risk.quote_asset is required")
	}

	return nil
}

// Timeout returns the per-call gateway deadline as a Duration.
func (c *ExchangeConfig) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// RateLimitWindow returns the limiter window as a Duration.
func (c *EngineConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// FillPollInterval returns the AWAITING_FILL polling cadence.
func (c *EngineConfig) FillPollInterval() time.Duration {
	return time.Duration(c.FillPollMs) * time.Millisecond
}

// PricePollInterval returns the OPEN-state polling cadence.
func (c *EngineConfig) PricePollInterval() time.Duration {
	return time.Duration(c.PricePollMs) * time.Millisecond
}

// BackoffBase returns the base delay for transient-error retries.
func (c *EngineConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// PriceCacheTTL returns the maximum tolerated tick staleness.
func (c *EngineConfig) PriceCacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLMs) * time.Millisecond
}

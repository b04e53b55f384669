package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCALPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SCALPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.ApiKey, "SCALPBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "SCALPBOT_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.BaseURL, "SCALPBOT_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.WsURL, "SCALPBOT_EXCHANGE_WS_URL")
	setInt(&cfg.Exchange.RequestTimeout, "SCALPBOT_EXCHANGE_REQUEST_TIMEOUT_SECONDS")

	// ── Engine ──
	setStrSlice(&cfg.Engine.Symbols, "SCALPBOT_ENGINE_SYMBOLS")
	setInt(&cfg.Engine.RateLimitCalls, "SCALPBOT_ENGINE_RATE_LIMIT_CALLS")
	setInt(&cfg.Engine.RateLimitWindowSeconds, "SCALPBOT_ENGINE_RATE_LIMIT_WINDOW_SECONDS")
	setInt(&cfg.Engine.FillPollMs, "SCALPBOT_ENGINE_FILL_POLL_MS")
	setInt(&cfg.Engine.PricePollMs, "SCALPBOT_ENGINE_PRICE_POLL_MS")
	setInt(&cfg.Engine.MaxRetries, "SCALPBOT_ENGINE_MAX_RETRIES")
	setInt(&cfg.Engine.BackoffBaseMs, "SCALPBOT_ENGINE_BACKOFF_BASE_MS")
	setInt(&cfg.Engine.PriceCacheTTLMs, "SCALPBOT_ENGINE_PRICE_CACHE_TTL_MS")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxDailyLoss, "SCALPBOT_RISK_MAX_DAILY_LOSS")
	setInt(&cfg.Risk.MaxConsecutiveLosses, "SCALPBOT_RISK_MAX_CONSECUTIVE_LOSSES")
	setFloat64(&cfg.Risk.MaxPositionNotional, "SCALPBOT_RISK_MAX_POSITION_NOTIONAL")
	setStr(&cfg.Risk.QuoteAsset, "SCALPBOT_RISK_QUOTE_ASSET")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SCALPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCALPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCALPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCALPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCALPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SCALPBOT_REDIS_TLS_ENABLED")
	setBool(&cfg.Redis.SharedRateLimit, "SCALPBOT_REDIS_SHARED_RATE_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SCALPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SCALPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCALPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCALPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCALPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCALPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCALPBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SCALPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SCALPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SCALPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCALPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCALPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStrSlice(&cfg.Notify.Events, "SCALPBOT_NOTIFY_EVENTS")

	// ── Top level ──
	setStr(&cfg.Mode, "SCALPBOT_MODE")
	setStr(&cfg.LogLevel, "SCALPBOT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStrSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

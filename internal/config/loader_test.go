package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "trade"

[exchange]
api_key = "k"
api_secret = "s"

[risk]
max_daily_loss = 250.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 250.0, cfg.Risk.MaxDailyLoss)
	// Untouched fields keep their defaults.
	require.Equal(t, "https://api.mexc.com", cfg.Exchange.BaseURL)
	require.Equal(t, 5, cfg.Engine.RateLimitCalls)
	require.Equal(t, "USDT", cfg.Risk.QuoteAsset)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
[exchange]
api_key = "file-key"
api_secret = "file-secret"

[engine]
symbols = ["ETHUSDT"]
`)

	t.Setenv("SCALPBOT_EXCHANGE_API_KEY", "env-key")
	t.Setenv("SCALPBOT_ENGINE_SYMBOLS", "BTCUSDT, SOLUSDT")
	t.Setenv("SCALPBOT_RISK_MAX_POSITION_NOTIONAL", "42.5")
	t.Setenv("SCALPBOT_REDIS_SHARED_RATE_LIMIT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "env-key", cfg.Exchange.ApiKey)
	require.Equal(t, "file-secret", cfg.Exchange.ApiSecret)
	require.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, cfg.Engine.Symbols)
	require.Equal(t, 42.5, cfg.Risk.MaxPositionNotional)
	require.True(t, cfg.Redis.SharedRateLimit)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "backtest" }},
		{"missing credentials in trade mode", func(c *Config) { c.Exchange.ApiKey = "" }},
		{"zero rate limit", func(c *Config) { c.Engine.RateLimitCalls = 0 }},
		{"no symbols", func(c *Config) { c.Engine.Symbols = nil }},
		{"zero daily loss", func(c *Config) { c.Risk.MaxDailyLoss = 0 }},
		{"empty quote asset", func(c *Config) { c.Risk.QuoteAsset = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Exchange.ApiKey = "k"
			cfg.Exchange.ApiSecret = "s"
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFeedModeNeedsNoCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "feed"
	require.NoError(t, cfg.Validate())
}

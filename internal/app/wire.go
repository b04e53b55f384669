package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scalpbot/internal/cache/redis"
	"scalpbot/internal/config"
	"scalpbot/internal/crypto"
	"scalpbot/internal/domain"
	"scalpbot/internal/metrics"
	"scalpbot/internal/notify"
	"scalpbot/internal/platform/mexc"
	"scalpbot/internal/ratelimit"
	"scalpbot/internal/store/postgres"
)

// rateLimitKey names the shared sliding window in Redis. Every process
// trading the same account must use the same key.
const rateLimitKey = "mexc:orders"

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gateway domain.ExchangeGateway
	Limiter domain.RateLimiter

	// Redis-backed; nil when no Redis address is configured.
	PriceCache domain.PriceCache
	SignalBus  domain.SignalBus

	// Postgres-backed; nil when no database is configured.
	OutcomeStore domain.OutcomeStore

	Metrics  *metrics.Manager
	Notifier *notify.Notifier
}

// hasRedis reports whether a Redis connection is configured.
func hasRedis(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.Redis.Addr) != ""
}

// hasPostgres reports whether an outcome archive database is configured.
func hasPostgres(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.Postgres.DSN) != "" || strings.TrimSpace(cfg.Postgres.Host) != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.NewManager(),
	}

	// --- Exchange gateway ---
	auth := &crypto.HMACAuth{
		Key:    cfg.Exchange.ApiKey,
		Secret: cfg.Exchange.ApiSecret,
	}
	deps.Gateway = mexc.NewClient(
		cfg.Exchange.BaseURL,
		auth,
		cfg.Exchange.Timeout(),
		mexc.RetryPolicy{
			MaxRetries: cfg.Engine.MaxRetries,
			Base:       cfg.Engine.BackoffBase(),
		},
		logger,
	)

	// --- Redis ---
	if hasRedis(cfg) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)

		if cfg.Redis.SharedRateLimit {
			deps.Limiter = redis.NewRateLimiter(
				redisClient,
				rateLimitKey,
				cfg.Engine.RateLimitCalls,
				cfg.Engine.RateLimitWindow(),
			)
		}
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewSlidingWindow(
			cfg.Engine.RateLimitCalls,
			cfg.Engine.RateLimitWindow(),
		)
	}

	// --- PostgreSQL outcome archive ---
	if hasPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.OutcomeStore = postgres.NewOutcomeStore(pgClient.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scalpbot/internal/domain"
)

// PriceSource serves the monitors' price polls. It prefers the cache kept
// warm by the websocket feed and falls back to a gateway REST read when the
// cached entry is missing or older than ttl. A nil cache degrades to
// REST-only operation.
type PriceSource struct {
	gateway domain.ExchangeGateway
	cache   domain.PriceCache
	ttl     time.Duration
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewPriceSource creates a source over the gateway with an optional cache.
func NewPriceSource(gateway domain.ExchangeGateway, cache domain.PriceCache, ttl time.Duration, logger *slog.Logger) *PriceSource {
	return &PriceSource{
		gateway: gateway,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "price_source")),
		now:     time.Now,
	}
}

// LatestPrice returns the freshest known price for the symbol.
func (ps *PriceSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if ps.cache != nil {
		price, ts, err := ps.cache.GetPrice(ctx, symbol)
		if err == nil && ps.now().Sub(ts) <= ps.ttl {
			return price, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			ps.logger.Debug("price cache read failed, falling back to gateway",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	return ps.gateway.GetPrice(ctx, symbol)
}

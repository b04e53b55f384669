// Package feed moves market data and engine events between processes: the
// websocket tick feeder keeps the shared price cache warm, and the outcome
// publisher/alerter pair carries closed-trade events over the signal bus.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scalpbot/internal/domain"
	"scalpbot/internal/platform/mexc"
)

// TickFeeder subscribes to the public deals stream and writes every trade
// tick into the shared price cache. The trading process reads the cache on
// its poll cadence instead of hitting the REST ticker.
type TickFeeder struct {
	ws      *mexc.WSClient
	cache   domain.PriceCache
	symbols []string
	logger  *slog.Logger
}

// NewTickFeeder creates a feeder for the given symbols.
func NewTickFeeder(ws *mexc.WSClient, cache domain.PriceCache, symbols []string, logger *slog.Logger) *TickFeeder {
	return &TickFeeder{
		ws:      ws,
		cache:   cache,
		symbols: symbols,
		logger:  logger.With(slog.String("component", "tick_feeder")),
	}
}

// Run connects, subscribes, and blocks until ctx is cancelled. The websocket
// client reconnects on its own; Run only exits on shutdown.
func (f *TickFeeder) Run(ctx context.Context) error {
	f.ws.OnTrade(func(tick mexc.TradeTick) {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := f.cache.SetPrice(writeCtx, tick.Symbol, tick.Price, tick.Time); err != nil {
			f.logger.Warn("price cache write failed",
				slog.String("symbol", tick.Symbol),
				slog.String("error", err.Error()),
			)
		}
	})

	if err := f.ws.Connect(ctx); err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	if err := f.ws.Subscribe(ctx, f.symbols); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}

	f.logger.Info("tick feeder started", slog.Any("symbols", f.symbols))
	defer f.logger.Info("tick feeder stopped")

	<-ctx.Done()
	_ = f.ws.Close()
	return ctx.Err()
}

package domain

import (
	"context"
	"time"
)

// ExchangeGateway is the capability set the engine consumes from the
// exchange: signed REST calls for order management and account reads.
// Implementations must be safe for concurrent use; every call carries a
// bounded deadline through ctx.
type ExchangeGateway interface {
	// PlaceOrder submits an order and returns the exchange's view of it,
	// including the exchange-assigned ID. A rejection is returned as
	// ErrOrderRejected (wrapped); transport failures are returned as-is.
	PlaceOrder(ctx context.Context, spec OrderSpec) (Order, error)

	// CancelOrder cancels an order. The returned Order carries the status the
	// exchange resolved the cancel to, which may be FILLED when the cancel
	// raced a fill.
	CancelOrder(ctx context.Context, symbol, orderID string) (Order, error)

	// GetOrderStatus fetches the current state of an order.
	GetOrderStatus(ctx context.Context, symbol, orderID string) (Order, error)

	// GetPrice returns the last trade price for the symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetAvailableBalance returns the free balance of the given asset.
	GetAvailableBalance(ctx context.Context, asset string) (float64, error)
}

// RateLimiter bounds outbound order-related calls. Acquire blocks until a
// slot is available in the current window, or fails with the ctx error when
// the caller's deadline expires first.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// PriceCache provides fast access to the latest observed prices. It is kept
// warm by the websocket tick feed; readers fall back to the gateway when an
// entry is missing or stale.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// SignalBus provides pub/sub delivery of engine events to external
// consumers (dashboards, chat layers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads; it is closed when ctx is
	// cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// OutcomeSink receives the realized result of every closed trade exactly
// once. Implementations include the in-memory statistics tracker, the
// postgres archive, and the signal-bus publisher.
type OutcomeSink interface {
	TradeClosed(ctx context.Context, outcome TradeOutcome) error
}

// OutcomeStore archives trade outcomes. Archival is the sink's job, not the
// engine's: the engine never reads these rows back.
type OutcomeStore interface {
	Insert(ctx context.Context, outcome TradeOutcome) error
	ListRecent(ctx context.Context, limit int) ([]TradeOutcome, error)
}

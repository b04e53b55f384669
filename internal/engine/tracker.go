// Package engine implements the order-lifecycle and position-monitoring
// core: orders gated by a shared rate limiter, a tracked in-flight order
// map, one monitor goroutine per open position, and the risk gate consulted
// before every new trade.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"scalpbot/internal/domain"
)

// OrderTracker is the authoritative map of in-flight orders keyed by the
// exchange-assigned order ID. An order is present exactly while its last
// known status is non-terminal. Every outbound call goes through the shared
// rate limiter before the gateway.
type OrderTracker struct {
	gateway domain.ExchangeGateway
	limiter domain.RateLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewOrderTracker creates a tracker over the given gateway and limiter.
func NewOrderTracker(gateway domain.ExchangeGateway, limiter domain.RateLimiter, logger *slog.Logger) *OrderTracker {
	return &OrderTracker{
		gateway: gateway,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "order_tracker")),
		orders:  make(map[string]domain.Order),
	}
}

// Place validates the spec, acquires a limiter slot, submits the order, and
// on success records it. On any error nothing is recorded, so a failed
// placement can never leave an orphan entry.
func (t *OrderTracker) Place(ctx context.Context, spec domain.OrderSpec) (domain.Order, error) {
	if err := spec.Validate(); err != nil {
		return domain.Order{}, err
	}
	if spec.ClientOrderID == "" {
		spec.ClientOrderID = uuid.NewString()
	}

	if err := t.limiter.Acquire(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("engine: place %s: %w", spec.Symbol, err)
	}

	order, err := t.gateway.PlaceOrder(ctx, spec)
	if err != nil {
		return domain.Order{}, err
	}

	t.mu.Lock()
	if !order.Status.IsTerminal() {
		t.orders[order.ID] = order
	}
	t.mu.Unlock()

	t.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("type", string(order.Type)),
		slog.Float64("quantity", order.Quantity),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

// Cancel cancels a tracked order. The gateway's returned status is trusted
// over the local guess: a cancel that raced a fill comes back FILLED, and
// the entry is evicted either way because both outcomes are terminal.
func (t *OrderTracker) Cancel(ctx context.Context, symbol, orderID string) (domain.Order, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("engine: cancel %s: %w", orderID, err)
	}

	order, err := t.gateway.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	t.apply(order)

	t.logger.Info("order cancel resolved",
		slog.String("order_id", orderID),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

// Refresh polls the exchange for the order's current status and updates the
// tracked entry, evicting it on a terminal status.
func (t *OrderTracker) Refresh(ctx context.Context, symbol, orderID string) (domain.Order, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("engine: refresh %s: %w", orderID, err)
	}

	order, err := t.gateway.GetOrderStatus(ctx, symbol, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	t.apply(order)
	return order, nil
}

// CancelAll sweeps a snapshot of the tracked orders, optionally filtered by
// symbol, and cancels each. Failures are collected and returned combined;
// orders whose cancel failed remain tracked.
func (t *OrderTracker) CancelAll(ctx context.Context, symbolFilter string) error {
	t.mu.Lock()
	snapshot := make([]domain.Order, 0, len(t.orders))
	for _, o := range t.orders {
		if symbolFilter == "" || o.Symbol == symbolFilter {
			snapshot = append(snapshot, o)
		}
	}
	t.mu.Unlock()

	var errs []error
	for _, o := range snapshot {
		if _, err := t.Cancel(ctx, o.Symbol, o.ID); err != nil {
			errs = append(errs, fmt.Errorf("engine: cancel all %s: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the tracked order with the given ID, if present.
func (t *OrderTracker) Get(orderID string) (domain.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderID]
	return o, ok
}

// Tracked returns a snapshot of all currently tracked orders.
func (t *OrderTracker) Tracked() []domain.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	return out
}

// apply folds an exchange-reported order state into the map.
func (t *OrderTracker) apply(order domain.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if order.Status.IsTerminal() {
		delete(t.orders, order.ID)
		return
	}
	if _, tracked := t.orders[order.ID]; tracked {
		t.orders[order.ID] = order
	}
}

package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"scalpbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopLimiter admits every call immediately.
type noopLimiter struct{}

func (noopLimiter) Acquire(context.Context) error { return nil }

// countingLimiter admits every call and counts acquisitions.
type countingLimiter struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLimiter) Acquire(context.Context) error {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return nil
}

func (l *countingLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// fakeGateway is a scriptable in-memory exchange. Responses are configured
// per method; every call is recorded.
type fakeGateway struct {
	mu sync.Mutex

	placeFn  func(domain.OrderSpec) (domain.Order, error)
	cancelFn func(symbol, orderID string) (domain.Order, error)
	statusFn func(symbol, orderID string) (domain.Order, error)
	priceFn  func(symbol string) (float64, error)

	balance    float64
	balanceErr error

	placeCalls   []domain.OrderSpec
	cancelCalls  []string
	statusCalls  []string
	balanceReads int
}

func (g *fakeGateway) PlaceOrder(_ context.Context, spec domain.OrderSpec) (domain.Order, error) {
	g.mu.Lock()
	g.placeCalls = append(g.placeCalls, spec)
	fn := g.placeFn
	g.mu.Unlock()

	if fn != nil {
		return fn(spec)
	}
	// Market orders execute immediately, like the real exchange.
	status := domain.OrderStatusNew
	if spec.Type == domain.OrderTypeMarket {
		status = domain.OrderStatusFilled
	}
	return domain.Order{
		ID:            "order-1",
		ClientOrderID: spec.ClientOrderID,
		Symbol:        spec.Symbol,
		Side:          spec.Side,
		Type:          spec.Type,
		Quantity:      spec.Quantity,
		Price:         spec.Price,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, symbol, orderID string) (domain.Order, error) {
	g.mu.Lock()
	g.cancelCalls = append(g.cancelCalls, orderID)
	fn := g.cancelFn
	g.mu.Unlock()

	if fn != nil {
		return fn(symbol, orderID)
	}
	return domain.Order{ID: orderID, Symbol: symbol, Status: domain.OrderStatusCancelled}, nil
}

func (g *fakeGateway) GetOrderStatus(_ context.Context, symbol, orderID string) (domain.Order, error) {
	g.mu.Lock()
	g.statusCalls = append(g.statusCalls, orderID)
	fn := g.statusFn
	g.mu.Unlock()

	if fn != nil {
		return fn(symbol, orderID)
	}
	return domain.Order{ID: orderID, Symbol: symbol, Status: domain.OrderStatusNew}, nil
}

func (g *fakeGateway) GetPrice(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	fn := g.priceFn
	g.mu.Unlock()

	if fn != nil {
		return fn(symbol)
	}
	return 0, domain.ErrNotFound
}

func (g *fakeGateway) GetAvailableBalance(context.Context, string) (float64, error) {
	g.mu.Lock()
	g.balanceReads++
	balance, err := g.balance, g.balanceErr
	g.mu.Unlock()
	return balance, err
}

func (g *fakeGateway) balanceReadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balanceReads
}

func (g *fakeGateway) placeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placeCalls)
}

func (g *fakeGateway) statusCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.statusCalls)
}

func (g *fakeGateway) cancelledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.cancelCalls))
	copy(out, g.cancelCalls)
	return out
}

var _ domain.ExchangeGateway = (*fakeGateway)(nil)

// captureSink records every outcome it receives.
type captureSink struct {
	mu       sync.Mutex
	outcomes []domain.TradeOutcome
}

func (s *captureSink) TradeClosed(_ context.Context, o domain.TradeOutcome) error {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) all() []domain.TradeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TradeOutcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// memPriceCache is an in-memory domain.PriceCache.
type memPriceCache struct {
	mu     sync.Mutex
	prices map[string]cachedPrice
}

type cachedPrice struct {
	price float64
	ts    time.Time
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{prices: make(map[string]cachedPrice)}
}

func (c *memPriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	c.prices[symbol] = cachedPrice{price: price, ts: ts}
	c.mu.Unlock()
	return nil
}

func (c *memPriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p.price, p.ts, nil
}

var _ domain.PriceCache = (*memPriceCache)(nil)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

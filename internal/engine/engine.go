package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scalpbot/internal/domain"
)

// TradeRequest is a strategy's proposal to open a position.
type TradeRequest struct {
	Symbol      string
	Side        domain.PositionSide
	Quantity    float64
	EntryPrice  float64
	TargetPrice float64
	StopPrice   float64
}

// Validate rejects malformed requests before any I/O happens.
func (r TradeRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", domain.ErrInvalidRequest)
	}
	if r.Side != domain.PositionSideLong && r.Side != domain.PositionSideShort {
		return fmt.Errorf("%w: unknown position side %q", domain.ErrInvalidRequest, r.Side)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidRequest)
	}
	if r.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive", domain.ErrInvalidRequest)
	}
	if r.TargetPrice <= 0 || r.StopPrice <= 0 {
		return fmt.Errorf("%w: target and stop prices must be positive", domain.ErrInvalidRequest)
	}
	if r.Side == domain.PositionSideLong && r.TargetPrice <= r.StopPrice {
		return fmt.Errorf("%w: long target must sit above stop", domain.ErrInvalidRequest)
	}
	if r.Side == domain.PositionSideShort && r.TargetPrice >= r.StopPrice {
		return fmt.Errorf("%w: short target must sit below stop", domain.ErrInvalidRequest)
	}
	return nil
}

// Engine is the strategy-facing entry point. It runs the request through the
// risk gate, places the entry order, and hands the position to a dedicated
// monitor goroutine.
type Engine struct {
	tracker *OrderTracker
	risk    *RiskGate
	prices  *PriceSource
	sink    domain.OutcomeSink
	cfg     MonitorConfig
	logger  *slog.Logger

	// monitorCtx is the lifetime of all spawned monitors; Shutdown cancels
	// it.
	monitorCtx    context.Context
	cancelMonitor context.CancelFunc

	mu       sync.Mutex
	monitors []*PositionMonitor
	stopped  bool

	wg sync.WaitGroup
}

// NewEngine wires the core components together.
func NewEngine(
	tracker *OrderTracker,
	risk *RiskGate,
	prices *PriceSource,
	sink domain.OutcomeSink,
	cfg MonitorConfig,
	logger *slog.Logger,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tracker:       tracker,
		risk:          risk,
		prices:        prices,
		sink:          sink,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "engine")),
		monitorCtx:    ctx,
		cancelMonitor: cancel,
	}
}

// RequestTrade validates the request, consults the risk gate, places the
// limit entry order, and spawns a monitor for it. A denial comes back as
// accepted=false with the gate's reason; an exchange rejection or transport
// failure comes back as an error.
func (e *Engine) RequestTrade(ctx context.Context, req TradeRequest) (bool, string, error) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return false, "", domain.ErrEngineStopped
	}

	if err := req.Validate(); err != nil {
		return false, "", err
	}

	allowed, reason, err := e.risk.Check(ctx, req.Symbol, req.Side.EntryOrderSide(), req.Quantity, req.EntryPrice)
	if err != nil {
		return false, "", err
	}
	if !allowed {
		return false, reason, nil
	}

	order, err := e.tracker.Place(ctx, domain.OrderSpec{
		Symbol:   req.Symbol,
		Side:     req.Side.EntryOrderSide(),
		Type:     domain.OrderTypeLimit,
		Quantity: req.Quantity,
		Price:    req.EntryPrice,
	})
	if err != nil {
		return false, "", err
	}

	position := domain.Position{
		Symbol:      req.Symbol,
		Side:        req.Side,
		EntryPrice:  req.EntryPrice,
		Quantity:    req.Quantity,
		TargetPrice: req.TargetPrice,
		StopPrice:   req.StopPrice,
		OpenedAt:    time.Now().UTC(),
	}

	monitor := NewPositionMonitor(e.tracker, e.prices, e.risk, e.sink, e.cfg, order, position, e.logger)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		// Shutdown won the race; the resting order is swept by CancelAll.
		return false, "", domain.ErrEngineStopped
	}
	e.monitors = append(e.monitors, monitor)
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		monitor.Run(e.monitorCtx)
	}()

	e.logger.Info("trade accepted",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.String("entry_order_id", order.ID),
	)
	return true, "", nil
}

// Monitors returns a snapshot of all monitors ever spawned, terminated ones
// included.
func (e *Engine) Monitors() []*PositionMonitor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*PositionMonitor, len(e.monitors))
	copy(out, e.monitors)
	return out
}

// OpenPositions counts monitors that have not reached a terminal state.
func (e *Engine) OpenPositions() int {
	n := 0
	for _, m := range e.Monitors() {
		switch m.State() {
		case StateClosed, StateCancelled:
		default:
			n++
		}
	}
	return n
}

// Shutdown stops the engine: new requests are refused, every monitor is
// cancelled cooperatively (in-flight closes complete), resting orders are
// swept, and the call waits for the monitors to finish or ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("engine shutting down")
	e.cancelMonitor()

	if err := e.tracker.CancelAll(ctx, ""); err != nil {
		e.logger.Error("failed to cancel resting orders", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: shutdown wait: %w", ctx.Err())
	}
}

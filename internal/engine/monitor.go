package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scalpbot/internal/domain"
)

// MonitorState is the lifecycle state of a position monitor.
type MonitorState string

const (
	// StateAwaitingFill: the entry order is resting, its status is polled
	// until it fills or dies.
	StateAwaitingFill MonitorState = "AWAITING_FILL"

	// StateOpen: the position is live, price is polled against the exit
	// conditions.
	StateOpen MonitorState = "OPEN"

	// StateClosing: an exit condition fired, the closing order is being
	// placed (and re-placed until it succeeds).
	StateClosing MonitorState = "CLOSING"

	// StateClosed: the position closed and its outcome was reported.
	StateClosed MonitorState = "CLOSED"

	// StateCancelled: the monitor stopped before the position closed.
	StateCancelled MonitorState = "CANCELLED"
)

// closeEscalateAfter is the number of failed close attempts after which the
// monitor raises its log severity from warn to error.
const closeEscalateAfter = 3

// MonitorConfig bounds the monitor's polling cadence.
type MonitorConfig struct {
	FillPollInterval  time.Duration
	PricePollInterval time.Duration
}

// PositionMonitor owns one position from entry placement to close. It is a
// single goroutine: poll entry status until filled, then poll price against
// the target and stop, then place the opposite-side market order and report
// the outcome exactly once. Run exits only through CLOSED or CANCELLED.
type PositionMonitor struct {
	tracker *OrderTracker
	prices  *PriceSource
	risk    *RiskGate
	sink    domain.OutcomeSink
	cfg     MonitorConfig
	logger  *slog.Logger

	entryOrder domain.Order
	position   domain.Position

	mu    sync.Mutex
	state MonitorState

	done chan struct{}
}

// NewPositionMonitor creates a monitor for a just-placed entry order. The
// position's entry price is taken from the order once it fills.
func NewPositionMonitor(
	tracker *OrderTracker,
	prices *PriceSource,
	risk *RiskGate,
	sink domain.OutcomeSink,
	cfg MonitorConfig,
	entryOrder domain.Order,
	position domain.Position,
	logger *slog.Logger,
) *PositionMonitor {
	return &PositionMonitor{
		tracker:    tracker,
		prices:     prices,
		risk:       risk,
		sink:       sink,
		cfg:        cfg,
		entryOrder: entryOrder,
		position:   position,
		logger: logger.With(
			slog.String("component", "position_monitor"),
			slog.String("symbol", position.Symbol),
			slog.String("entry_order_id", entryOrder.ID),
		),
		state: StateAwaitingFill,
		done:  make(chan struct{}),
	}
}

// State returns the monitor's current lifecycle state.
func (m *PositionMonitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed when the monitor has terminated.
func (m *PositionMonitor) Done() <-chan struct{} {
	return m.done
}

func (m *PositionMonitor) setState(s MonitorState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run drives the monitor to a terminal state. Cancellation via ctx is
// cooperative: an already-initiated close completes, everything else stops.
func (m *PositionMonitor) Run(ctx context.Context) {
	defer close(m.done)

	if m.entryOrder.Status != domain.OrderStatusFilled {
		if !m.awaitFill(ctx) {
			return
		}
	}
	m.setState(StateOpen)
	m.logger.Info("position open",
		slog.Float64("entry_price", m.position.EntryPrice),
		slog.Float64("target", m.position.TargetPrice),
		slog.Float64("stop", m.position.StopPrice),
	)

	exitPrice, ok := m.watchPrice(ctx)
	if !ok {
		return
	}

	m.setState(StateClosing)
	if !m.closePosition(ctx, exitPrice) {
		return
	}

	outcome := domain.TradeOutcome{
		Symbol:         m.position.Symbol,
		RealizedProfit: m.position.RealizedProfit(exitPrice),
		Quantity:       m.position.Quantity,
		ClosedAt:       time.Now().UTC(),
	}
	m.report(outcome)
	m.setState(StateClosed)
}

// awaitFill polls the entry order until it fills. It returns false when the
// order dies or the monitor is cancelled; the position never materializes in
// either case.
func (m *PositionMonitor) awaitFill(ctx context.Context) bool {
	ticker := time.NewTicker(m.cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateCancelled)
			return false
		case <-ticker.C:
		}

		order, err := m.tracker.Refresh(ctx, m.entryOrder.Symbol, m.entryOrder.ID)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateCancelled)
				return false
			}
			m.logger.Warn("entry status poll failed", slog.String("error", err.Error()))
			continue
		}

		switch order.Status {
		case domain.OrderStatusFilled:
			m.entryOrder = order
			if order.Price > 0 {
				m.position.EntryPrice = order.Price
			}
			m.position.OpenedAt = order.CreatedAt
			return true
		case domain.OrderStatusCancelled, domain.OrderStatusRejected, domain.OrderStatusExpired:
			m.logger.Warn("entry order died before filling",
				slog.String("status", string(order.Status)),
			)
			m.setState(StateCancelled)
			return false
		}
	}
}

// watchPrice polls the market until an exit condition fires. It returns the
// triggering price. When both conditions hold on the same tick the stop-loss
// wins; containing the loss outranks taking the profit.
func (m *PositionMonitor) watchPrice(ctx context.Context) (float64, bool) {
	ticker := time.NewTicker(m.cfg.PricePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateCancelled)
			return 0, false
		case <-ticker.C:
		}

		price, err := m.prices.LatestPrice(ctx, m.position.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateCancelled)
				return 0, false
			}
			m.logger.Warn("price poll failed", slog.String("error", err.Error()))
			continue
		}

		switch {
		case m.position.StopLossHit(price):
			m.logger.Info("stop loss triggered", slog.Float64("price", price))
			return price, true
		case m.position.TakeProfitHit(price):
			m.logger.Info("take profit triggered", slog.Float64("price", price))
			return price, true
		}
	}
}

// closePosition places the opposite-side market order for the full quantity,
// retrying on the poll cadence until it succeeds. The placement itself runs
// on a detached context so a close that already started survives shutdown;
// cancellation is only honoured between attempts.
func (m *PositionMonitor) closePosition(ctx context.Context, triggerPrice float64) bool {
	spec := domain.OrderSpec{
		Symbol:   m.position.Symbol,
		Side:     m.position.Side.EntryOrderSide().Opposite(),
		Type:     domain.OrderTypeMarket,
		Quantity: m.position.Quantity,
	}

	for attempt := 1; ; attempt++ {
		order, err := m.tracker.Place(context.WithoutCancel(ctx), spec)
		if err == nil {
			m.logger.Info("position closed",
				slog.Float64("exit_price", triggerPrice),
				slog.Int("attempts", attempt),
			)
			m.drainCloseOrder(ctx, order)
			return true
		}

		// The longer the position stays unresolved, the louder we get.
		if attempt >= closeEscalateAfter {
			m.logger.Error("close order failed, position still open",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		} else {
			m.logger.Warn("close order failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}

		timer := time.NewTimer(m.cfg.PricePollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.setState(StateCancelled)
			return false
		case <-timer.C:
		}
	}
}

// drainCloseOrder polls the close order through to a terminal status so it
// does not linger in the tracker. A MARKET close normally comes back FILLED
// on placement and the loop never runs.
func (m *PositionMonitor) drainCloseOrder(ctx context.Context, order domain.Order) {
	for !order.Status.IsTerminal() {
		timer := time.NewTimer(m.cfg.FillPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		refreshed, err := m.tracker.Refresh(context.WithoutCancel(ctx), order.Symbol, order.ID)
		if err != nil {
			m.logger.Warn("close order status poll failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		order = refreshed
	}
}

// report delivers the outcome to the risk gate and the outcome sink. Run
// calls it exactly once per closed position.
func (m *PositionMonitor) report(outcome domain.TradeOutcome) {
	m.risk.RecordOutcome(outcome)

	if m.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.sink.TradeClosed(ctx, outcome); err != nil {
		m.logger.Error("outcome sink delivery failed", slog.String("error", err.Error()))
	}
}

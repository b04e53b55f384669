package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scalpbot/internal/domain"
)

// Deny reasons returned by RiskGate.Check.
const (
	ReasonDailyLoss           = "daily loss limit reached"
	ReasonConsecutiveLosses   = "consecutive loss limit reached"
	ReasonNotionalTooLarge    = "position notional exceeds limit"
	ReasonInsufficientBalance = "insufficient balance"
)

// RiskGate answers allow/deny for proposed trades and accumulates the
// session's rolling counters. Limits live in an atomic snapshot so updates
// never race concurrent Check calls; counters are guarded by one mutex.
type RiskGate struct {
	gateway domain.ExchangeGateway
	limits  atomic.Pointer[domain.RiskLimits]
	logger  *slog.Logger

	mu                sync.Mutex
	dailyPnL          float64
	dailyTradeCount   int
	consecutiveLosses int
	dayStartedAt      time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRiskGate creates a gate with the given initial limits.
func NewRiskGate(gateway domain.ExchangeGateway, limits domain.RiskLimits, logger *slog.Logger) *RiskGate {
	rg := &RiskGate{
		gateway: gateway,
		logger:  logger.With(slog.String("component", "risk_gate")),
		now:     time.Now,
	}
	rg.limits.Store(&limits)
	rg.dayStartedAt = rg.now()
	return rg
}

// UpdateLimits replaces the limits snapshot wholesale. In-flight Check calls
// keep the snapshot they started with.
func (rg *RiskGate) UpdateLimits(limits domain.RiskLimits) {
	rg.limits.Store(&limits)
}

// Limits returns the current limits snapshot.
func (rg *RiskGate) Limits() domain.RiskLimits {
	return *rg.limits.Load()
}

// Check decides whether a proposed trade is allowed. Checks run in a fixed
// order, first failure wins: daily loss, consecutive-loss streak, position
// notional, then available balance. The balance read is the only network
// call and runs last, outside the counter lock.
func (rg *RiskGate) Check(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (bool, string, error) {
	limits := rg.Limits()

	rg.mu.Lock()
	rg.maybeResetDayLocked()
	dailyPnL := rg.dailyPnL
	streak := rg.consecutiveLosses
	rg.mu.Unlock()

	if dailyPnL <= -limits.MaxDailyLoss {
		rg.logger.Warn("trade denied",
			slog.String("symbol", symbol),
			slog.String("reason", ReasonDailyLoss),
			slog.Float64("daily_pnl", dailyPnL),
		)
		return false, ReasonDailyLoss, nil
	}

	if streak >= limits.MaxConsecutiveLosses {
		rg.logger.Warn("trade denied",
			slog.String("symbol", symbol),
			slog.String("reason", ReasonConsecutiveLosses),
			slog.Int("streak", streak),
		)
		return false, ReasonConsecutiveLosses, nil
	}

	notional := quantity * price
	if notional > limits.MaxPositionNotional {
		rg.logger.Warn("trade denied",
			slog.String("symbol", symbol),
			slog.String("reason", ReasonNotionalTooLarge),
			slog.Float64("notional", notional),
		)
		return false, ReasonNotionalTooLarge, nil
	}

	balance, err := rg.gateway.GetAvailableBalance(ctx, limits.QuoteAsset)
	if err != nil {
		return false, "", fmt.Errorf("engine: risk balance check: %w", err)
	}
	if notional > balance {
		rg.logger.Warn("trade denied",
			slog.String("symbol", symbol),
			slog.String("reason", ReasonInsufficientBalance),
			slog.Float64("notional", notional),
			slog.Float64("balance", balance),
		)
		return false, ReasonInsufficientBalance, nil
	}

	return true, "", nil
}

// RecordOutcome folds one closed trade into the rolling counters. A loss
// extends the streak; any non-loss, break-even included, resets it.
func (rg *RiskGate) RecordOutcome(outcome domain.TradeOutcome) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.maybeResetDayLocked()

	rg.dailyPnL += outcome.RealizedProfit
	rg.dailyTradeCount++

	if outcome.RealizedProfit < 0 {
		rg.consecutiveLosses++
	} else {
		rg.consecutiveLosses = 0
	}

	rg.logger.Info("outcome recorded",
		slog.String("symbol", outcome.Symbol),
		slog.Float64("profit", outcome.RealizedProfit),
		slog.Float64("daily_pnl", rg.dailyPnL),
		slog.Int("streak", rg.consecutiveLosses),
	)
}

// Status returns a consistent snapshot of the rolling counters.
func (rg *RiskGate) Status() domain.RiskStatus {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.maybeResetDayLocked()
	return domain.RiskStatus{
		DailyPnL:          rg.dailyPnL,
		DailyTradeCount:   rg.dailyTradeCount,
		ConsecutiveLosses: rg.consecutiveLosses,
		DayStartedAt:      rg.dayStartedAt,
	}
}

// maybeResetDayLocked zeroes all rolling counters, the loss streak included,
// once 24 hours have elapsed since the stored day start. Caller must hold
// rg.mu.
func (rg *RiskGate) maybeResetDayLocked() {
	now := rg.now()
	if now.Sub(rg.dayStartedAt) < 24*time.Hour {
		return
	}

	rg.logger.Info("daily risk counters reset",
		slog.Float64("closed_daily_pnl", rg.dailyPnL),
		slog.Int("closed_trade_count", rg.dailyTradeCount),
		slog.Int("closed_loss_streak", rg.consecutiveLosses),
	)
	rg.dailyPnL = 0
	rg.dailyTradeCount = 0
	rg.consecutiveLosses = 0
	rg.dayStartedAt = now
}

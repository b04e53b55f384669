// Package metrics keeps in-memory trade statistics and fans trade outcomes
// out to the registered sinks.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"scalpbot/internal/domain"
)

// Snapshot is a point-in-time view of the session's trade statistics.
type Snapshot struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalPnL      float64
	SymbolPnL     map[string]float64
	Uptime        time.Duration
}

// Manager accumulates per-session trade statistics. It implements
// domain.OutcomeSink so the engine can feed it like any other sink.
type Manager struct {
	startedAt time.Time
	now       func() time.Time

	mu            sync.Mutex
	totalTrades   int
	winningTrades int
	losingTrades  int
	totalPnL      float64
	symbolPnL     map[string]float64
}

// NewManager creates an empty statistics manager. Uptime counts from here.
func NewManager() *Manager {
	return &Manager{
		startedAt: time.Now(),
		now:       time.Now,
		symbolPnL: make(map[string]float64),
	}
}

// TradeClosed records one closed trade. A zero-profit trade counts toward
// the total but is neither a win nor a loss.
func (m *Manager) TradeClosed(_ context.Context, outcome domain.TradeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalTrades++
	m.totalPnL += outcome.RealizedProfit
	m.symbolPnL[outcome.Symbol] += outcome.RealizedProfit

	switch {
	case outcome.RealizedProfit > 0:
		m.winningTrades++
	case outcome.RealizedProfit < 0:
		m.losingTrades++
	}

	return nil
}

// Snapshot returns a copy of the current statistics.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	perSymbol := make(map[string]float64, len(m.symbolPnL))
	for sym, pnl := range m.symbolPnL {
		perSymbol[sym] = pnl
	}

	snap := Snapshot{
		TotalTrades:   m.totalTrades,
		WinningTrades: m.winningTrades,
		LosingTrades:  m.losingTrades,
		TotalPnL:      m.totalPnL,
		SymbolPnL:     perSymbol,
		Uptime:        m.now().Sub(m.startedAt),
	}
	if m.totalTrades > 0 {
		snap.WinRate = float64(m.winningTrades) / float64(m.totalTrades)
	}
	return snap
}

// MultiSink delivers every outcome to all registered sinks. Delivery
// continues past individual sink failures; the combined error is returned.
type MultiSink struct {
	sinks []domain.OutcomeSink
}

// NewMultiSink creates a fan-out sink over the given sinks.
func NewMultiSink(sinks ...domain.OutcomeSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// TradeClosed forwards the outcome to every sink.
func (ms *MultiSink) TradeClosed(ctx context.Context, outcome domain.TradeOutcome) error {
	var errs []error
	for _, s := range ms.sinks {
		if err := s.TradeClosed(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface checks.
var (
	_ domain.OutcomeSink = (*Manager)(nil)
	_ domain.OutcomeSink = (*MultiSink)(nil)
)

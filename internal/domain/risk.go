package domain

import "time"

// RiskLimits is an immutable snapshot of the configured risk parameters.
// Updates replace the whole snapshot atomically; individual fields are never
// mutated in place.
type RiskLimits struct {
	// MaxDailyLoss is the maximum tolerated daily loss in quote currency,
	// expressed as a positive number.
	MaxDailyLoss float64

	// MaxConsecutiveLosses blocks new trades once this many losing trades
	// occur in a row.
	MaxConsecutiveLosses int

	// MaxPositionNotional caps quantity*price of a single proposed trade in
	// quote currency.
	MaxPositionNotional float64

	// QuoteAsset is the asset whose free balance must cover the proposed
	// notional (e.g. "USDT").
	QuoteAsset string
}

// RiskStatus is a read-only snapshot of the gate's rolling counters, taken
// under the gate's lock.
type RiskStatus struct {
	DailyPnL          float64
	DailyTradeCount   int
	ConsecutiveLosses int
	DayStartedAt      time.Time
}

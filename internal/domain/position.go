package domain

import "time"

// PositionSide indicates the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// EntryOrderSide returns the order side that opens a position in this
// direction.
func (s PositionSide) EntryOrderSide() OrderSide {
	if s == PositionSideLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Position represents a filled entry being watched for exit. It exists only
// while its monitor is alive; there is no persistence across restarts.
type Position struct {
	Symbol      string
	Side        PositionSide
	EntryPrice  float64
	Quantity    float64
	TargetPrice float64
	StopPrice   float64
	OpenedAt    time.Time
}

// RealizedProfit computes the profit of closing the position at exitPrice.
func (p Position) RealizedProfit(exitPrice float64) float64 {
	if p.Side == PositionSideLong {
		return (exitPrice - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - exitPrice) * p.Quantity
}

// TakeProfitHit reports whether price satisfies the take-profit condition.
func (p Position) TakeProfitHit(price float64) bool {
	if p.Side == PositionSideLong {
		return price >= p.TargetPrice
	}
	return price <= p.TargetPrice
}

// StopLossHit reports whether price satisfies the stop-loss condition.
func (p Position) StopLossHit(price float64) bool {
	if p.Side == PositionSideLong {
		return price <= p.StopPrice
	}
	return price >= p.StopPrice
}

// TradeOutcome is the realized result of a closed position. It is passed to
// the risk gate and outcome sinks and not retained by the engine.
type TradeOutcome struct {
	Symbol         string    `json:"symbol"`
	RealizedProfit float64   `json:"realized_profit"`
	Quantity       float64   `json:"quantity"`
	ClosedAt       time.Time `json:"closed_at"`
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRealizedProfit(t *testing.T) {
	long := Position{Side: PositionSideLong, EntryPrice: 40000, Quantity: 0.01}
	require.InDelta(t, 2.5, long.RealizedProfit(40250), 1e-9)
	require.InDelta(t, -2.5, long.RealizedProfit(39750), 1e-9)

	short := Position{Side: PositionSideShort, EntryPrice: 40000, Quantity: 0.01}
	require.InDelta(t, 2.5, short.RealizedProfit(39750), 1e-9)
	require.InDelta(t, -2.5, short.RealizedProfit(40250), 1e-9)
}

func TestExitTriggers(t *testing.T) {
	long := Position{Side: PositionSideLong, TargetPrice: 40200, StopPrice: 39800}
	require.True(t, long.TakeProfitHit(40200))
	require.False(t, long.TakeProfitHit(40199))
	require.True(t, long.StopLossHit(39800))
	require.False(t, long.StopLossHit(39801))

	short := Position{Side: PositionSideShort, TargetPrice: 39800, StopPrice: 40200}
	require.True(t, short.TakeProfitHit(39800))
	require.True(t, short.StopLossHit(40200))
	require.False(t, short.StopLossHit(40199))
}

func TestEntryOrderSide(t *testing.T) {
	require.Equal(t, OrderSideBuy, PositionSideLong.EntryOrderSide())
	require.Equal(t, OrderSideSell, PositionSideShort.EntryOrderSide())
	require.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
}

func TestOrderSpecValidate(t *testing.T) {
	valid := OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     OrderSideBuy,
		Type:     OrderTypeLimit,
		Quantity: 0.01,
		Price:    40000,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*OrderSpec)
	}{
		{"missing symbol", func(s *OrderSpec) { s.Symbol = "" }},
		{"bad side", func(s *OrderSpec) { s.Side = "HOLD" }},
		{"bad type", func(s *OrderSpec) { s.Type = "ICEBERG" }},
		{"zero quantity", func(s *OrderSpec) { s.Quantity = 0 }},
		{"limit without price", func(s *OrderSpec) { s.Price = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := valid
			tc.mutate(&spec)
			require.ErrorIs(t, spec.Validate(), ErrInvalidRequest)
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	require.False(t, OrderStatusNew.IsTerminal())
	require.False(t, OrderStatusPartiallyFilled.IsTerminal())
	require.True(t, OrderStatusFilled.IsTerminal())
	require.True(t, OrderStatusCancelled.IsTerminal())
	require.True(t, OrderStatusRejected.IsTerminal())
	require.True(t, OrderStatusExpired.IsTerminal())
}

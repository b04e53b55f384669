package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scalpbot/internal/domain"
)

func newTestTracker(gw *fakeGateway) (*OrderTracker, *countingLimiter) {
	limiter := &countingLimiter{}
	return NewOrderTracker(gw, limiter, testLogger()), limiter
}

func limitSpec(symbol string) domain.OrderSpec {
	return domain.OrderSpec{
		Symbol:   symbol,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeLimit,
		Quantity: 0.01,
		Price:    40000,
	}
}

func TestPlaceTracksOrder(t *testing.T) {
	gw := &fakeGateway{}
	tracker, limiter := newTestTracker(gw)

	order, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.NoError(t, err)
	require.Equal(t, "order-1", order.ID)
	require.NotEmpty(t, order.ClientOrderID)

	tracked, ok := tracker.Get(order.ID)
	require.True(t, ok)
	require.Equal(t, domain.OrderStatusNew, tracked.Status)
	require.Equal(t, 1, limiter.count())
}

func TestPlaceGatewayErrorLeavesNoOrphan(t *testing.T) {
	gw := &fakeGateway{
		placeFn: func(domain.OrderSpec) (domain.Order, error) {
			return domain.Order{ID: "ghost"}, errors.New("exchange down")
		},
	}
	tracker, _ := newTestTracker(gw)

	_, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.Error(t, err)

	_, ok := tracker.Get("ghost")
	require.False(t, ok)
	require.Empty(t, tracker.Tracked())
}

func TestPlaceInvalidSpecSkipsIO(t *testing.T) {
	gw := &fakeGateway{}
	tracker, limiter := newTestTracker(gw)

	_, err := tracker.Place(context.Background(), domain.OrderSpec{Symbol: "BTCUSDT"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Zero(t, limiter.count())
	require.Zero(t, gw.placeCount())
}

func TestPlaceRateLimitFailureSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	tracker := NewOrderTracker(gw, blockedLimiter{}, testLogger())

	_, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.Zero(t, gw.placeCount())
}

// blockedLimiter always reports saturation.
type blockedLimiter struct{}

func (blockedLimiter) Acquire(ctx context.Context) error {
	return domain.ErrRateLimited
}

func TestCancelRaceTrustsGatewayStatus(t *testing.T) {
	gw := &fakeGateway{
		cancelFn: func(symbol, orderID string) (domain.Order, error) {
			// The cancel lost the race; the order filled first.
			return domain.Order{ID: orderID, Symbol: symbol, Status: domain.OrderStatusFilled}, nil
		},
	}
	tracker, _ := newTestTracker(gw)

	order, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.NoError(t, err)

	resolved, err := tracker.Cancel(context.Background(), "BTCUSDT", order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFilled, resolved.Status)

	// Terminal either way, so the entry is gone.
	_, ok := tracker.Get(order.ID)
	require.False(t, ok)
}

func TestRefreshRoundTrip(t *testing.T) {
	statuses := []domain.OrderStatus{
		domain.OrderStatusNew,
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
	}
	var call int
	gw := &fakeGateway{
		statusFn: func(symbol, orderID string) (domain.Order, error) {
			st := statuses[call]
			if call < len(statuses)-1 {
				call++
			}
			return domain.Order{ID: orderID, Symbol: symbol, Status: st, CreatedAt: time.Now()}, nil
		},
	}
	tracker, _ := newTestTracker(gw)

	placed, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.NoError(t, err)

	seen := placed.Status
	for i := 0; i < 3; i++ {
		refreshed, err := tracker.Refresh(context.Background(), "BTCUSDT", placed.ID)
		require.NoError(t, err)
		require.Equal(t, placed.ID, refreshed.ID)
		require.False(t, statusRank(refreshed.Status) < statusRank(seen),
			"status regressed from %s to %s", seen, refreshed.Status)
		seen = refreshed.Status
	}

	// FILLED is terminal, the tracker must have evicted the entry.
	_, ok := tracker.Get(placed.ID)
	require.False(t, ok)
}

func statusRank(s domain.OrderStatus) int {
	switch s {
	case domain.OrderStatusNew:
		return 0
	case domain.OrderStatusPartiallyFilled:
		return 1
	default:
		return 2
	}
}

func TestCancelAllCollectsFailures(t *testing.T) {
	failID := ""
	gw := &fakeGateway{}
	gw.cancelFn = func(symbol, orderID string) (domain.Order, error) {
		if orderID == failID {
			return domain.Order{}, errors.New("cancel refused")
		}
		return domain.Order{ID: orderID, Symbol: symbol, Status: domain.OrderStatusCancelled}, nil
	}
	var n int
	gw.placeFn = func(spec domain.OrderSpec) (domain.Order, error) {
		n++
		return domain.Order{
			ID:     spec.Symbol + "-" + string(rune('a'+n)),
			Symbol: spec.Symbol,
			Status: domain.OrderStatusNew,
		}, nil
	}
	tracker, _ := newTestTracker(gw)

	first, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.NoError(t, err)
	second, err := tracker.Place(context.Background(), limitSpec("ETHUSDT"))
	require.NoError(t, err)
	failID = second.ID

	err = tracker.CancelAll(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), second.ID)

	// The successful cancel is gone, the failed one must remain visible.
	_, ok := tracker.Get(first.ID)
	require.False(t, ok)
	_, ok = tracker.Get(second.ID)
	require.True(t, ok)
}

func TestCancelAllSymbolFilter(t *testing.T) {
	var n int
	gw := &fakeGateway{
		placeFn: func(spec domain.OrderSpec) (domain.Order, error) {
			n++
			return domain.Order{
				ID:     spec.Symbol + "-" + string(rune('a'+n)),
				Symbol: spec.Symbol,
				Status: domain.OrderStatusNew,
			}, nil
		},
	}
	tracker, _ := newTestTracker(gw)

	_, err := tracker.Place(context.Background(), limitSpec("BTCUSDT"))
	require.NoError(t, err)
	eth, err := tracker.Place(context.Background(), limitSpec("ETHUSDT"))
	require.NoError(t, err)

	require.NoError(t, tracker.CancelAll(context.Background(), "BTCUSDT"))

	require.Len(t, tracker.Tracked(), 1)
	_, ok := tracker.Get(eth.ID)
	require.True(t, ok)
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatestPricePrefersFreshCache(t *testing.T) {
	gw := &fakeGateway{
		priceFn: func(string) (float64, error) { return 40100, nil },
	}
	cache := newMemPriceCache()
	src := NewPriceSource(gw, cache, 2*time.Second, testLogger())

	now := time.Now()
	src.now = func() time.Time { return now }
	require.NoError(t, cache.SetPrice(context.Background(), "BTCUSDT", 40050, now.Add(-time.Second)))

	price, err := src.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 40050.0, price)
}

func TestLatestPriceStaleCacheFallsBack(t *testing.T) {
	gw := &fakeGateway{
		priceFn: func(string) (float64, error) { return 40100, nil },
	}
	cache := newMemPriceCache()
	src := NewPriceSource(gw, cache, 2*time.Second, testLogger())

	now := time.Now()
	src.now = func() time.Time { return now }
	require.NoError(t, cache.SetPrice(context.Background(), "BTCUSDT", 40050, now.Add(-time.Minute)))

	price, err := src.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 40100.0, price)
}

func TestLatestPriceMissingCacheEntryFallsBack(t *testing.T) {
	gw := &fakeGateway{
		priceFn: func(string) (float64, error) { return 40100, nil },
	}
	src := NewPriceSource(gw, newMemPriceCache(), 2*time.Second, testLogger())

	price, err := src.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 40100.0, price)
}

func TestLatestPriceNilCacheUsesGateway(t *testing.T) {
	gw := &fakeGateway{
		priceFn: func(string) (float64, error) { return 40100, nil },
	}
	src := NewPriceSource(gw, nil, 2*time.Second, testLogger())

	price, err := src.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 40100.0, price)
}

func TestLatestPriceGatewayError(t *testing.T) {
	wantErr := errors.New("ticker down")
	gw := &fakeGateway{
		priceFn: func(string) (float64, error) { return 0, wantErr },
	}
	src := NewPriceSource(gw, nil, 2*time.Second, testLogger())

	_, err := src.LatestPrice(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, wantErr)
}

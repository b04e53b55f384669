package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scalpbot/internal/domain"
	"scalpbot/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chanBus is an in-memory domain.SignalBus over a single channel.
type chanBus struct {
	mu        sync.Mutex
	published [][]byte
	sub       chan []byte
}

func newChanBus() *chanBus {
	return &chanBus{sub: make(chan []byte, 16)}
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, payload)
	b.mu.Unlock()
	b.sub <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.sub, nil
}

var _ domain.SignalBus = (*chanBus)(nil)

type captureSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSender) Send(_ context.Context, _, message string) error {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	return nil
}

func (s *captureSender) Name() string { return "capture" }

func TestOutcomePublisherEmitsJSON(t *testing.T) {
	bus := newChanBus()
	pub := NewOutcomePublisher(bus, testLogger())

	want := domain.TradeOutcome{
		Symbol:         "BTCUSDT",
		RealizedProfit: 2.5,
		Quantity:       0.01,
		ClosedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, pub.TradeClosed(context.Background(), want))

	require.Len(t, bus.published, 1)
	var got domain.TradeOutcome
	require.NoError(t, json.Unmarshal(bus.published[0], &got))
	require.Equal(t, want, got)
}

func TestOutcomeAlerterNotifies(t *testing.T) {
	bus := newChanBus()
	sender := &captureSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, nil, testLogger())
	alerter := NewOutcomeAlerter(bus, notifier, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = alerter.Run(ctx)
		close(done)
	}()

	pub := NewOutcomePublisher(bus, testLogger())
	require.NoError(t, pub.TradeClosed(ctx, domain.TradeOutcome{
		Symbol:         "BTCUSDT",
		RealizedProfit: -2.5,
		Quantity:       0.01,
		ClosedAt:       time.Now().UTC(),
	}))

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.messages) == 1
	}, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	msg := sender.messages[0]
	sender.mu.Unlock()
	require.Contains(t, msg, "BTCUSDT")
	require.Contains(t, msg, "loss")

	cancel()
	<-done
}

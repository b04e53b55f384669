package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"scalpbot/internal/domain"
	"scalpbot/internal/engine"
	"scalpbot/internal/notify"
)

// RequestChannel is the signal bus channel carrying trade proposals from
// external strategy processes.
const RequestChannel = "trade_requests"

// TradeSubmitter is the slice of the engine the listener needs.
type TradeSubmitter interface {
	RequestTrade(ctx context.Context, req engine.TradeRequest) (bool, string, error)
}

// tradeRequestEvent is the JSON shape strategies publish on trade_requests.
type tradeRequestEvent struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	EntryPrice  float64 `json:"entry_price"`
	TargetPrice float64 `json:"target_price"`
	StopPrice   float64 `json:"stop_price"`
}

// RequestListener subscribes to the trade_requests channel and submits each
// proposal to the engine. It is the strategy-facing surface of the trading
// process; strategies themselves live elsewhere.
type RequestListener struct {
	bus      domain.SignalBus
	engine   TradeSubmitter
	notifier Alerter
	logger   *slog.Logger
}

// Alerter is the optional notification hook for denied trades.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NewRequestListener creates a listener over the given bus and engine.
// notifier may be nil.
func NewRequestListener(bus domain.SignalBus, eng TradeSubmitter, notifier Alerter, logger *slog.Logger) *RequestListener {
	return &RequestListener{
		bus:      bus,
		engine:   eng,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "request_listener")),
	}
}

// Run consumes trade proposals until ctx is cancelled.
func (l *RequestListener) Run(ctx context.Context) error {
	ch, err := l.bus.Subscribe(ctx, RequestChannel)
	if err != nil {
		return fmt.Errorf("feed: subscribe trade requests: %w", err)
	}
	l.logger.Info("request listener started")
	defer l.logger.Info("request listener stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(ctx, data)
		}
	}
}

func (l *RequestListener) handle(ctx context.Context, data []byte) {
	var ev tradeRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.Debug("dropping unparseable trade request",
			slog.String("error", err.Error()),
		)
		return
	}

	req := engine.TradeRequest{
		Symbol:      ev.Symbol,
		Side:        domain.PositionSide(ev.Side),
		Quantity:    ev.Quantity,
		EntryPrice:  ev.EntryPrice,
		TargetPrice: ev.TargetPrice,
		StopPrice:   ev.StopPrice,
	}

	accepted, reason, err := l.engine.RequestTrade(ctx, req)
	if err != nil {
		l.logger.Error("trade request failed",
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}
	if !accepted {
		l.logger.Warn("trade request denied",
			slog.String("symbol", ev.Symbol),
			slog.String("reason", reason),
		)
		if l.notifier != nil {
			msg := fmt.Sprintf("%s %s denied: %s", ev.Symbol, ev.Side, reason)
			_ = l.notifier.Notify(ctx, notify.EventRiskDenied, "Trade denied", msg)
		}
	}
}

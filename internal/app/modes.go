package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"scalpbot/internal/domain"
	"scalpbot/internal/engine"
	"scalpbot/internal/feed"
	"scalpbot/internal/metrics"
	"scalpbot/internal/notify"
	"scalpbot/internal/platform/mexc"
)

// shutdownGrace bounds how long TradeMode waits for monitors to wind down
// after the context is cancelled.
const shutdownGrace = 30 * time.Second

// archiveSink adapts the outcome store to the sink interface the engine
// fans out to.
type archiveSink struct {
	store domain.OutcomeStore
}

func (s archiveSink) TradeClosed(ctx context.Context, outcome domain.TradeOutcome) error {
	return s.store.Insert(ctx, outcome)
}

// TradeMode runs the execution engine: the risk gate, order tracker, and
// position monitors, fed by trade proposals arriving on the signal bus.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	tracker := engine.NewOrderTracker(deps.Gateway, deps.Limiter, a.logger)
	risk := engine.NewRiskGate(deps.Gateway, domain.RiskLimits{
		MaxDailyLoss:         a.cfg.Risk.MaxDailyLoss,
		MaxConsecutiveLosses: a.cfg.Risk.MaxConsecutiveLosses,
		MaxPositionNotional:  a.cfg.Risk.MaxPositionNotional,
		QuoteAsset:           a.cfg.Risk.QuoteAsset,
	}, a.logger)
	prices := engine.NewPriceSource(deps.Gateway, deps.PriceCache, a.cfg.Engine.PriceCacheTTL(), a.logger)

	sinks := []domain.OutcomeSink{deps.Metrics}
	if deps.OutcomeStore != nil {
		sinks = append(sinks, archiveSink{store: deps.OutcomeStore})
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, feed.NewOutcomePublisher(deps.SignalBus, a.logger))
	}
	sink := metrics.NewMultiSink(sinks...)

	eng := engine.NewEngine(tracker, risk, prices, sink, engine.MonitorConfig{
		FillPollInterval:  a.cfg.Engine.FillPollInterval(),
		PricePollInterval: a.cfg.Engine.PricePollInterval(),
	}, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	if deps.SignalBus != nil {
		listener := feed.NewRequestListener(deps.SignalBus, eng, deps.Notifier, a.logger)
		g.Go(func() error {
			return listener.Run(gctx)
		})

		alerter := feed.NewOutcomeAlerter(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return alerter.Run(gctx)
		})
	} else {
		a.logger.Warn("no redis configured, trade requests cannot be received")
	}

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if sdErr := eng.Shutdown(shutdownCtx); sdErr != nil {
		a.logger.Error("engine shutdown incomplete", slog.String("error", sdErr.Error()))
	}

	snap := deps.Metrics.Snapshot()
	a.logger.Info("session statistics",
		slog.Int("total_trades", snap.TotalTrades),
		slog.Int("winning_trades", snap.WinningTrades),
		slog.Float64("win_rate", snap.WinRate),
		slog.Float64("total_pnl", snap.TotalPnL),
		slog.Duration("uptime", snap.Uptime),
	)

	if err != nil && !errors.Is(err, context.Canceled) {
		if deps.Notifier != nil {
			alertCtx, alertCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = deps.Notifier.Notify(alertCtx, notify.EventError, "Trading stopped", err.Error())
			alertCancel()
		}
		return fmt.Errorf("app: trade mode: %w", err)
	}
	return err
}

// FeedMode streams public trades from the exchange websocket into the shared
// price cache for the trading process to read.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode")

	if deps.PriceCache == nil {
		return fmt.Errorf("app: feed mode requires redis")
	}

	ws := mexc.NewWSClient(a.cfg.Exchange.WsURL)
	feeder := feed.NewTickFeeder(ws, deps.PriceCache, a.cfg.Engine.Symbols, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feeder.Run(gctx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: feed mode: %w", err)
	}
	return err
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"scalpbot/internal/domain"
	"scalpbot/internal/notify"
)

// OutcomeChannel is the signal bus channel carrying closed-trade events.
const OutcomeChannel = "outcomes"

// OutcomePublisher is an outcome sink that publishes every closed trade to
// the signal bus as JSON, for dashboards and chat layers running outside
// this process.
type OutcomePublisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewOutcomePublisher creates a publisher over the given bus.
func NewOutcomePublisher(bus domain.SignalBus, logger *slog.Logger) *OutcomePublisher {
	return &OutcomePublisher{
		bus:    bus,
		logger: logger.With(slog.String("component", "outcome_publisher")),
	}
}

// TradeClosed publishes the outcome on the outcomes channel.
func (p *OutcomePublisher) TradeClosed(ctx context.Context, outcome domain.TradeOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("feed: marshal outcome: %w", err)
	}
	if err := p.bus.Publish(ctx, OutcomeChannel, payload); err != nil {
		return fmt.Errorf("feed: publish outcome: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OutcomeSink = (*OutcomePublisher)(nil)

// OutcomeAlerter subscribes to the outcomes channel and turns each closed
// trade into an operator notification.
type OutcomeAlerter struct {
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewOutcomeAlerter creates an alerter over the given bus and notifier.
func NewOutcomeAlerter(bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *OutcomeAlerter {
	return &OutcomeAlerter{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "outcome_alerter")),
	}
}

// Run consumes outcome events until ctx is cancelled.
func (a *OutcomeAlerter) Run(ctx context.Context) error {
	ch, err := a.bus.Subscribe(ctx, OutcomeChannel)
	if err != nil {
		return fmt.Errorf("feed: subscribe outcomes: %w", err)
	}
	a.logger.Info("outcome alerter started")
	defer a.logger.Info("outcome alerter stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			a.handle(ctx, data)
		}
	}
}

func (a *OutcomeAlerter) handle(ctx context.Context, data []byte) {
	var outcome domain.TradeOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		a.logger.Debug("dropping unparseable outcome event",
			slog.String("error", err.Error()),
		)
		return
	}

	title, body := notify.FormatOutcome(outcome)
	if err := a.notifier.Notify(ctx, notify.EventTradeClosed, title, body); err != nil {
		a.logger.Warn("trade-closed notification failed",
			slog.String("error", err.Error()),
		)
	}
}

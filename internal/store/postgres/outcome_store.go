package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"scalpbot/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates an OutcomeStore backed by the given connection pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Insert archives one closed trade.
func (s *OutcomeStore) Insert(ctx context.Context, outcome domain.TradeOutcome) error {
	const query = `
		INSERT INTO trade_outcomes (id, symbol, realized_profit, quantity, closed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		uuid.New(),
		outcome.Symbol,
		outcome.RealizedProfit,
		outcome.Quantity,
		outcome.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert outcome %s: %w", outcome.Symbol, err)
	}
	return nil
}

// ListRecent returns the most recently closed trades, newest first.
func (s *OutcomeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeOutcome, error) {
	const query = `
		SELECT symbol, realized_profit, quantity, closed_at
		FROM trade_outcomes
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		if err := rows.Scan(&o.Symbol, &o.RealizedProfit, &o.Quantity, &o.ClosedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent outcomes: %w", err)
	}
	return outcomes, nil
}

// Compile-time interface check.
var _ domain.OutcomeStore = (*OutcomeStore)(nil)

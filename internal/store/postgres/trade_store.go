package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert records one executed trade.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			ticker, side, action, quantity, avg_price, total_cost,
			method, slippage, client_order_id, strategy_name, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	executedAt := t.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		t.Ticker, string(t.Side), string(t.Action), t.Quantity,
		t.AvgPrice, t.TotalCost, string(t.Method), t.Slippage,
		t.ClientOrderID, t.Strategy, executedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.Ticker, err)
	}
	return nil
}

// ListByTicker returns trades for a ticker, newest first.
func (s *TradeStore) ListByTicker(ctx context.Context, ticker string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `
		SELECT id, ticker, side, action, quantity, avg_price, total_cost,
		       method, slippage, client_order_id, strategy_name, executed_at
		FROM trades WHERE ticker = $1`
	args := []any{ticker}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY executed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", ticker, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, action, method string
		if err := rows.Scan(
			&t.ID, &t.Ticker, &side, &action, &t.Quantity,
			&t.AvgPrice, &t.TotalCost, &method, &t.Slippage,
			&t.ClientOrderID, &t.Strategy, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.Action = domain.Action(action)
		t.Method = domain.ExecMethod(method)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns all trades executed strictly before the cutoff, oldest
// first, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ticker, side, action, quantity, avg_price, total_cost,
		       method, slippage, client_order_id, strategy_name, executed_at
		FROM trades WHERE executed_at < $1 ORDER BY executed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, action, method string
		if err := rows.Scan(
			&t.ID, &t.Ticker, &side, &action, &t.Quantity,
			&t.AvgPrice, &t.TotalCost, &method, &t.Slippage,
			&t.ClientOrderID, &t.Strategy, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.Action = domain.Action(action)
		t.Method = domain.ExecMethod(method)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// GetLastTimestamp returns the executed_at of the most recent trade, or the
// zero time when no trades exist.
func (s *TradeStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT executed_at FROM trades ORDER BY executed_at DESC LIMIT 1`,
	).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("postgres: last trade timestamp: %w", err)
	}
	return ts, nil
}

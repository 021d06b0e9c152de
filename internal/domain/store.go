package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists positions. The engine reads it; only the trading
// loop writes.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	Close(ctx context.Context, id string, exitPrice float64) error
	GetOpen(ctx context.Context) ([]Position, error)
	GetByID(ctx context.Context, id string) (Position, error)
	ListHistory(ctx context.Context, opts ListOpts) ([]Position, error)
}

// TradeStore persists executed-trade records.
type TradeStore interface {
	Insert(ctx context.Context, trade Trade) error
	ListByTicker(ctx context.Context, ticker string, opts ListOpts) ([]Trade, error)
	GetLastTimestamp(ctx context.Context) (time.Time, error)
}

// DecisionStore persists execution decisions and their outcomes for audit.
type DecisionStore interface {
	Record(ctx context.Context, ticker string, decision ExecutionDecision, result *ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// DecisionRecord is one audited decide/execute round trip.
type DecisionRecord struct {
	ID        int64
	Ticker    string
	Decision  ExecutionDecision
	Result    *ExecutionResult
	CreatedAt time.Time
}

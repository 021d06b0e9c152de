package strategy

import (
	"context"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// Strategy is the contract for signal generators. Evaluate is called on a
// fixed cadence per configured ticker and returns zero or more signals for
// the executor; it must never place orders itself.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	Evaluate(ctx context.Context, ticker string) ([]domain.TradeSignal, error)
	Close() error
}

// Config holds per-strategy tunables.
type Config struct {
	Tickers      []string
	QuoteSize    int     // contracts per quote side
	BaseSpread   float64 // base spread width in probability
	MinEdge      float64 // minimum expected per-contract maker edge
	FillRate     float64 // assumed quote fill probability
	RebatePerLot float64 // exchange maker rebate per contract
}

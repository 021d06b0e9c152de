package engine

import (
	"context"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// Exchange is the boundary the engine executes through. It is implemented by
// the Kalshi REST client; all wire-shape normalization (cents to
// probabilities, loose keys to fixed structs) happens behind it, never here.
type Exchange interface {
	GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error)
	GetMarket(ctx context.Context, ticker string) (domain.Market, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error)
	GetFills(ctx context.Context, ticker string, limit int) ([]domain.Fill, error)
}

// BookSource is the subset of Exchange the microstructure analyzer needs.
type BookSource interface {
	GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error)
}

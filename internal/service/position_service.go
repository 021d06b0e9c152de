package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// PositionView is an open position annotated with the latest cached price.
type PositionView struct {
	domain.Position
	CurrentPrice  float64
	UnrealizedPnL float64
}

// PositionService serves position state to the HTTP layer.
type PositionService struct {
	positions domain.PositionStore
	prices    domain.PriceCache
	logger    *slog.Logger
}

func NewPositionService(positions domain.PositionStore, prices domain.PriceCache, logger *slog.Logger) *PositionService {
	return &PositionService{
		positions: positions,
		prices:    prices,
		logger:    logger.With(slog.String("component", "position_service")),
	}
}

// Open returns all open positions marked with unrealized PnL where a cached
// price exists. Positions without a fresh price carry a zero CurrentPrice.
func (s *PositionService) Open(ctx context.Context) ([]PositionView, error) {
	open, err := s.positions.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: get open: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	tickers := make([]string, 0, len(open))
	for _, p := range open {
		tickers = append(tickers, p.MarketID)
	}
	prices, err := s.prices.GetPrices(ctx, tickers)
	if err != nil {
		s.logger.Warn("price lookup failed", slog.String("error", err.Error()))
		prices = map[string]float64{}
	}

	views := make([]PositionView, 0, len(open))
	for _, p := range open {
		view := PositionView{Position: p}
		if price, ok := prices[p.MarketID]; ok {
			view.CurrentPrice = price
			view.UnrealizedPnL = float64(p.SignedQuantity()) * (price - p.EntryPrice)
		}
		views = append(views, view)
	}
	return views, nil
}

// History returns closed and open positions with pagination.
func (s *PositionService) History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListHistory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("position_service: history: %w", err)
	}
	return positions, nil
}

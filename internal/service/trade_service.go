package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// TradeService records the audit trail of the trading loop: every decision,
// every completed execution, and the resulting position changes. It
// implements the executor's Recorder.
type TradeService struct {
	trades    domain.TradeStore
	decisions domain.DecisionStore
	positions domain.PositionStore
	logger    *slog.Logger
}

func NewTradeService(
	trades domain.TradeStore,
	decisions domain.DecisionStore,
	positions domain.PositionStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades:    trades,
		decisions: decisions,
		positions: positions,
		logger:    logger.With(slog.String("component", "trade_service")),
	}
}

// RecordDecision persists one engine decision before execution. Rejected
// decisions are the interesting rows here: they show what the engine refused
// and why.
func (s *TradeService) RecordDecision(ctx context.Context, sig domain.TradeSignal, decision domain.ExecutionDecision) error {
	if err := s.decisions.Record(ctx, sig.Ticker, decision, nil); err != nil {
		return fmt.Errorf("trade_service: record decision %s: %w", sig.Ticker, err)
	}
	return nil
}

// RecordExecution persists the completed execution: the decision/result pair
// for audit, a trade row when anything filled, and the position update.
func (s *TradeService) RecordExecution(ctx context.Context, sig domain.TradeSignal, decision domain.ExecutionDecision, result domain.ExecutionResult) error {
	if err := s.decisions.Record(ctx, sig.Ticker, decision, &result); err != nil {
		return fmt.Errorf("trade_service: record execution %s: %w", sig.Ticker, err)
	}

	if result.FilledQuantity <= 0 {
		return nil
	}

	trade := domain.Trade{
		Ticker:     sig.Ticker,
		Side:       sig.Side,
		Action:     sig.Action,
		Quantity:   result.FilledQuantity,
		AvgPrice:   result.AverageFillPrice,
		TotalCost:  result.TotalCost,
		Method:     result.MethodUsed,
		Slippage:   result.Slippage,
		Strategy:   sig.Source,
		ExecutedAt: time.Now().UTC(),
	}
	if err := s.trades.Insert(ctx, trade); err != nil {
		return fmt.Errorf("trade_service: insert trade %s: %w", sig.Ticker, err)
	}

	if err := s.applyFill(ctx, sig, result); err != nil {
		// The trade row is already durable; a position bookkeeping failure
		// must not look like a failed execution.
		s.logger.Error("position update failed",
			slog.String("ticker", sig.Ticker),
			slog.String("error", err.Error()))
	}
	return nil
}

// applyFill folds the fill into the position book: buys open or grow a
// position, sells shrink and eventually close the oldest open ones.
func (s *TradeService) applyFill(ctx context.Context, sig domain.TradeSignal, result domain.ExecutionResult) error {
	if sig.Action == domain.ActionBuy {
		pos := domain.Position{
			ID:         uuid.NewString(),
			MarketID:   sig.Ticker,
			Side:       sig.Side,
			Quantity:   result.FilledQuantity,
			EntryPrice: result.AverageFillPrice,
			Strategy:   sig.Source,
			Status:     domain.PositionStatusOpen,
			OpenedAt:   time.Now().UTC(),
		}
		if err := s.positions.Create(ctx, pos); err != nil {
			return fmt.Errorf("create position: %w", err)
		}
		return nil
	}

	open, err := s.positions.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("get open positions: %w", err)
	}

	remaining := result.FilledQuantity
	for i := len(open) - 1; i >= 0 && remaining > 0; i-- {
		pos := open[i]
		if pos.MarketID != sig.Ticker || pos.Side != sig.Side {
			continue
		}

		if pos.Quantity <= remaining {
			remaining -= pos.Quantity
			if err := s.positions.Close(ctx, pos.ID, result.AverageFillPrice); err != nil {
				return fmt.Errorf("close position %s: %w", pos.ID, err)
			}
			continue
		}

		pos.Quantity -= remaining
		pos.RealizedPnL += float64(remaining) * (result.AverageFillPrice - pos.EntryPrice)
		remaining = 0
		if err := s.positions.Update(ctx, pos); err != nil {
			return fmt.Errorf("reduce position %s: %w", pos.ID, err)
		}
	}

	if remaining > 0 {
		s.logger.Warn("sell exceeded tracked positions",
			slog.String("ticker", sig.Ticker),
			slog.Int("untracked", remaining))
	}
	return nil
}

// History returns recent trades for one ticker.
func (s *TradeService) History(ctx context.Context, ticker string, limit int) ([]domain.Trade, error) {
	trades, err := s.trades.ListByTicker(ctx, ticker, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("trade_service: history %s: %w", ticker, err)
	}
	return trades, nil
}

// RecentDecisions returns the newest audit rows for the dashboard.
func (s *TradeService) RecentDecisions(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	records, err := s.decisions.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("trade_service: recent decisions: %w", err)
	}
	return records, nil
}

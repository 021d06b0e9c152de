package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/executor"
)

const (
	quoteTTL        = 30 * time.Second
	liquidationTTL  = 2 * time.Minute
	defaultFillRate = 0.5
)

// MarketMaker posts inventory-aware two-sided quotes on each configured
// ticker. It leans on the engine for book snapshots and inventory state and
// only emits signals when the expected maker edge clears the configured
// minimum.
type MarketMaker struct {
	engine  *engine.Orchestrator
	capital executor.CapitalSource
	cfg     Config
	logger  *slog.Logger
}

func NewMarketMaker(orch *engine.Orchestrator, capital executor.CapitalSource, cfg Config, logger *slog.Logger) *MarketMaker {
	if cfg.QuoteSize <= 0 {
		cfg.QuoteSize = 10
	}
	if cfg.BaseSpread <= 0 {
		cfg.BaseSpread = 0.02
	}
	if cfg.FillRate <= 0 {
		cfg.FillRate = defaultFillRate
	}
	return &MarketMaker{
		engine:  orch,
		capital: capital,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "market_maker")),
	}
}

func (m *MarketMaker) Name() string { return "market_maker" }

func (m *MarketMaker) Init(ctx context.Context) error { return nil }

func (m *MarketMaker) Close() error { return nil }

// Evaluate produces the current quote pair for one ticker, or a liquidation
// signal when inventory is past its safe bound.
func (m *MarketMaker) Evaluate(ctx context.Context, ticker string) ([]domain.TradeSignal, error) {
	snap, err := m.engine.Microstructure().Snapshot(ctx, ticker, domain.SideYes)
	if err != nil {
		return nil, fmt.Errorf("strategy: snapshot %s: %w", ticker, err)
	}
	if skip, reason := m.engine.Microstructure().ShouldSkip(*snap); skip {
		m.logger.Debug("skipping ticker", slog.String("ticker", ticker), slog.String("reason", reason))
		return nil, nil
	}

	capital, err := m.capital.TotalCapital(ctx)
	if err != nil {
		return nil, fmt.Errorf("strategy: capital: %w", err)
	}

	state, err := m.engine.Inventory().State(ctx, ticker, snap.MidPrice, capital)
	if err != nil {
		return nil, fmt.Errorf("strategy: inventory %s: %w", ticker, err)
	}

	if forced, reason, err := m.engine.Inventory().NeedsForcedLiquidation(ctx, ticker, snap.MidPrice, capital); err == nil && forced {
		return m.liquidationSignals(ctx, ticker, snap.MidPrice, capital, reason)
	}

	if state.StopQuoting {
		m.logger.Info("quoting halted",
			slog.String("ticker", ticker),
			slog.Float64("inventory_risk", state.InventoryRisk),
			slog.Int("net_position", state.NetPosition))
		return nil, nil
	}

	edge := m.engine.Inventory().MakerRebateValue(m.cfg.BaseSpread*state.RecommendedWidth, m.cfg.FillRate, m.cfg.RebatePerLot)
	if edge < m.cfg.MinEdge {
		m.logger.Debug("edge below minimum",
			slog.String("ticker", ticker),
			slog.Float64("edge", edge),
			slog.Float64("min_edge", m.cfg.MinEdge))
		return nil, nil
	}

	quotes := m.engine.Inventory().OptimalQuotes(ticker, snap.MidPrice, m.cfg.BaseSpread, state, m.cfg.QuoteSize)
	now := time.Now()
	var signals []domain.TradeSignal
	if quotes.BidSize > 0 {
		signals = append(signals, m.quoteSignal(ticker, domain.ActionBuy, quotes.BidPrice, quotes.BidSize, quotes.Reasoning, now))
	}
	if quotes.AskSize > 0 {
		signals = append(signals, m.quoteSignal(ticker, domain.ActionSell, quotes.AskPrice, quotes.AskSize, quotes.Reasoning, now))
	}
	return signals, nil
}

func (m *MarketMaker) quoteSignal(ticker string, action domain.Action, price float64, size int, reason string, now time.Time) domain.TradeSignal {
	return domain.TradeSignal{
		ID:          uuid.NewString(),
		Source:      m.Name(),
		Ticker:      ticker,
		Side:        domain.SideYes,
		Action:      action,
		Quantity:    size,
		TargetPrice: price,
		Urgency:     domain.UrgencyLow,
		Reason:      reason,
		CreatedAt:   now,
		ExpiresAt:   now.Add(quoteTTL),
	}
}

func (m *MarketMaker) liquidationSignals(ctx context.Context, ticker string, midPrice, capital float64, reason string) ([]domain.TradeSignal, error) {
	plan, err := m.engine.Inventory().LiquidationStrategy(ctx, ticker, midPrice, capital)
	if err != nil {
		return nil, fmt.Errorf("strategy: liquidation plan %s: %w", ticker, err)
	}
	if !plan.NeedsLiquidation || plan.QuantityToClose <= 0 {
		return nil, nil
	}
	urgency := domain.UrgencyHigh
	if plan.Urgency == domain.LiquidationHigh {
		urgency = domain.UrgencyUrgent
	}
	m.logger.Warn("forced liquidation",
		slog.String("ticker", ticker),
		slog.Int("quantity", plan.QuantityToClose),
		slog.String("reason", reason))
	now := time.Now()
	return []domain.TradeSignal{{
		ID:          uuid.NewString(),
		Source:      domain.SourceLiquidation,
		Ticker:      ticker,
		Side:        domain.SideYes,
		Action:      plan.Action,
		Quantity:    plan.QuantityToClose,
		TargetPrice: midPrice,
		Urgency:     urgency,
		Reason:      plan.Reasoning,
		CreatedAt:   now,
		ExpiresAt:   now.Add(liquidationTTL),
	}}, nil
}

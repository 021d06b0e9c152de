package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// InventoryManager keeps net exposure per market inside risk limits and
// biases quoting so positions self-correct: a long book quotes lower and
// smaller on the bid, a short book the reverse.
//
// State is recomputed from open positions on every call. Position and price
// both move between calls, so the cached copy exists only for observers
// (status endpoints), never for decisions.
type InventoryManager struct {
	positions domain.PositionStore
	params    Params
	logger    *slog.Logger

	mu     sync.Mutex
	states map[string]domain.InventoryState
}

// NewInventoryManager creates a manager reading open positions from store.
func NewInventoryManager(store domain.PositionStore, params Params, logger *slog.Logger) *InventoryManager {
	return &InventoryManager{
		positions: store,
		params:    params,
		logger:    logger.With(slog.String("component", "inventory")),
		states:    make(map[string]domain.InventoryState),
	}
}

// State assesses the current net position in one market against total
// capital. Risk blends position size relative to the capital cap, raw
// contract skew, and price-extremity (a contract at 95c carries more
// resolution risk than one at 50c).
func (m *InventoryManager) State(ctx context.Context, ticker string, currentPrice, totalCapital float64) (domain.InventoryState, error) {
	open, err := m.positions.GetOpen(ctx)
	if err != nil {
		return domain.InventoryState{}, fmt.Errorf("engine: inventory state %s: %w", ticker, err)
	}

	netPosition := 0
	for _, p := range open {
		if p.MarketID == ticker {
			netPosition += p.SignedQuantity()
		}
	}

	positionValue := math.Abs(float64(netPosition)) * currentPrice
	positionPct := 0.0
	if totalCapital > 0 {
		positionPct = positionValue / totalCapital
	}

	sizeRisk := positionPct / m.params.MaxInventoryPct
	skewRisk := math.Abs(float64(netPosition)) / m.params.SkewNormalization
	priceRisk := math.Abs(currentPrice-0.50) * 2

	risk := clamp01(m.params.SizeRiskWeight*sizeRisk +
		m.params.SkewRiskWeight*skewRisk +
		m.params.PriceRiskWeight*priceRisk)

	maxSafe := 0
	if currentPrice > 0 {
		maxSafe = int(totalCapital * m.params.MaxInventoryPct / currentPrice)
	}

	needsRebalance := risk > m.params.HighInventoryRisk ||
		(maxSafe > 0 && math.Abs(float64(netPosition)) > float64(maxSafe)*m.params.RebalanceFraction)

	// Skew opposes the position: long book leans quotes down to sell off,
	// short book leans up to buy back.
	skew := 0.0
	if maxSafe > 0 && netPosition != 0 {
		ratio := math.Abs(float64(netPosition)) / float64(maxSafe)
		skew = math.Min(m.params.MaxQuoteSkew, ratio)
		if netPosition > 0 {
			skew = -skew
		}
	}

	width := m.params.BaseSpreadWidth * (1 + risk)

	stop := risk > m.params.StopQuotingRisk ||
		math.Abs(float64(netPosition)) > float64(maxSafe)

	state := domain.InventoryState{
		Ticker:           ticker,
		Timestamp:        time.Now().UTC(),
		NetPosition:      netPosition,
		PositionValue:    positionValue,
		PositionPct:      positionPct,
		InventoryRisk:    risk,
		MaxSafePosition:  maxSafe,
		NeedsRebalance:   needsRebalance,
		RecommendedSkew:  skew,
		RecommendedWidth: width,
		StopQuoting:      stop,
	}

	m.mu.Lock()
	m.states[ticker] = state
	m.mu.Unlock()

	return state, nil
}

// LastState returns the most recently computed state for observers. The
// second return is false when the ticker has never been assessed.
func (m *InventoryManager) LastState(ticker string) (domain.InventoryState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[ticker]
	return s, ok
}

// OptimalQuotes derives the two-sided quote to post given the inventory
// state: skew shifts both prices toward unwinding, and the side that would
// grow the position quotes smaller size.
func (m *InventoryManager) OptimalQuotes(ticker string, midPrice, baseSpread float64, state domain.InventoryState, maxSize int) domain.QuoteAdjustment {
	halfSpread := (baseSpread * state.RecommendedWidth) / 2
	skewAmount := halfSpread * state.RecommendedSkew

	bidPrice := midPrice - halfSpread + skewAmount
	askPrice := midPrice + halfSpread + skewAmount

	bidPrice = math.Max(0.01, math.Min(0.98, bidPrice))
	askPrice = math.Max(0.02, math.Min(0.99, askPrice))

	bidSize, askSize := maxSize, maxSize
	var reasoning string
	switch {
	case state.NetPosition > 0 && state.MaxSafePosition > 0:
		ratio := math.Min(1, float64(state.NetPosition)/float64(state.MaxSafePosition))
		bidSize = maxInt(1, int(float64(maxSize)*(1-ratio)))
		reasoning = fmt.Sprintf(
			"long %d contracts (%.1f%% of capital), skewing to sell: bid %d, ask %d",
			state.NetPosition, state.PositionPct*100, bidSize, askSize)
	case state.NetPosition < 0 && state.MaxSafePosition > 0:
		ratio := math.Min(1, math.Abs(float64(state.NetPosition))/float64(state.MaxSafePosition))
		askSize = maxInt(1, int(float64(maxSize)*(1-ratio)))
		reasoning = fmt.Sprintf(
			"short %d contracts (%.1f%% of capital), skewing to buy: bid %d, ask %d",
			-state.NetPosition, state.PositionPct*100, bidSize, askSize)
	default:
		reasoning = "neutral position, quoting evenly on both sides"
	}

	return domain.QuoteAdjustment{
		BidPrice:  math.Round(bidPrice*100) / 100,
		AskPrice:  math.Round(askPrice*100) / 100,
		BidSize:   bidSize,
		AskSize:   askSize,
		Reasoning: reasoning,
	}
}

// NeedsForcedLiquidation reports whether the position must be unwound now:
// over the hard size cap, critically risky, or past the capital limit.
func (m *InventoryManager) NeedsForcedLiquidation(ctx context.Context, ticker string, currentPrice, totalCapital float64) (bool, string, error) {
	state, err := m.State(ctx, ticker, currentPrice, totalCapital)
	if err != nil {
		return false, "", err
	}

	absPos := math.Abs(float64(state.NetPosition))
	switch {
	case absPos > float64(state.MaxSafePosition):
		return true, fmt.Sprintf("position %d exceeds max %d", int(absPos), state.MaxSafePosition), nil
	case state.InventoryRisk > m.params.LiquidationRisk:
		return true, fmt.Sprintf("inventory risk %.0f%% critical", state.InventoryRisk*100), nil
	case state.PositionPct > m.params.MaxInventoryPct*1.2:
		return true, fmt.Sprintf("position %.1f%% of capital exceeds limit %.0f%%",
			state.PositionPct*100, m.params.MaxInventoryPct*100), nil
	}
	return false, "no forced liquidation needed", nil
}

// LiquidationStrategy plans how to reduce excess inventory: market orders
// when risk is high, limit orders when moderate, passive quoting when only
// rebalancing is flagged.
func (m *InventoryManager) LiquidationStrategy(ctx context.Context, ticker string, currentPrice, totalCapital float64) (domain.LiquidationPlan, error) {
	state, err := m.State(ctx, ticker, currentPrice, totalCapital)
	if err != nil {
		return domain.LiquidationPlan{}, err
	}

	if state.NetPosition == 0 {
		return domain.LiquidationPlan{
			Method:  domain.LiquidationMethodNone,
			Urgency: domain.LiquidationNone,
		}, nil
	}

	absPos := int(math.Abs(float64(state.NetPosition)))
	excess := absPos - state.MaxSafePosition

	plan := domain.LiquidationPlan{
		CurrentPosition: state.NetPosition,
		MaxSafePosition: state.MaxSafePosition,
		Action:          domain.ActionSell,
	}
	if state.NetPosition < 0 {
		plan.Action = domain.ActionBuy
	}

	if excess <= 0 {
		plan.NeedsLiquidation = state.NeedsRebalance
		plan.Urgency = domain.LiquidationLow
		plan.Method = domain.LiquidationMethodPassive
		if state.NeedsRebalance {
			plan.QuantityToClose = absPos / 2
		}
	} else {
		plan.NeedsLiquidation = true
		plan.QuantityToClose = excess
		if state.InventoryRisk > 0.8 {
			plan.Urgency = domain.LiquidationHigh
			plan.Method = domain.LiquidationMethodMarket
		} else {
			plan.Urgency = domain.LiquidationMedium
			plan.Method = domain.LiquidationMethodLimit
		}
	}

	plan.Reasoning = fmt.Sprintf("position %d vs max %d, risk %.0f%%, closing %d contracts",
		state.NetPosition, state.MaxSafePosition, state.InventoryRisk*100, plan.QuantityToClose)
	return plan, nil
}

// MakerRebateValue is the expected per-contract edge from posting liquidity:
// half the spread plus any rebate, discounted by the fill probability. The
// strategy layer uses it to compare market making against taking.
func (m *InventoryManager) MakerRebateValue(spread, fillRate, rebatePerContract float64) float64 {
	if fillRate <= 0 {
		fillRate = 0.5
	}
	return (spread/2 + rebatePerContract) * fillRate
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// Execute carries out a decision against the exchange. Dispatch is on the
// decision's method; an unknown method fails the single call without
// touching the exchange. A should_execute=false decision returns immediately
// and is guaranteed never to place an order.
func (o *Orchestrator) Execute(ctx context.Context, ticker string, side domain.Side, action domain.Action, decision domain.ExecutionDecision) domain.ExecutionResult {
	if !decision.ShouldExecute {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: decision.Method,
			Warnings:   decision.Warnings,
			Details:    decision.Reasoning,
		}
	}

	start := time.Now()
	o.statsMu.Lock()
	o.totalOrders++
	o.statsMu.Unlock()

	var result domain.ExecutionResult
	switch decision.Method {
	case domain.ExecMarket:
		result = o.executeMarket(ctx, ticker, side, action, decision.OrderSize)
	case domain.ExecLimit, domain.ExecSmartLimit:
		result = o.executeLimit(ctx, ticker, side, action, decision.OrderSize,
			decision.LimitPrice, decision.MaxSlippagePct)
	case domain.ExecIceberg:
		result = o.executeIceberg(ctx, ticker, side, action, decision.OrderSize,
			decision.ChunkSize, decision.DelayBetweenChunk)
	case domain.ExecTWAP:
		chunkSize := maxInt(1, decision.OrderSize/maxInt(1, decision.ChunkCount))
		result = o.executeIceberg(ctx, ticker, side, action, decision.OrderSize,
			chunkSize, decision.DelayBetweenChunk)
		result.MethodUsed = domain.ExecTWAP
	default:
		return domain.ExecutionResult{
			Success:       false,
			ExecutionTime: time.Since(start),
			MethodUsed:    decision.Method,
			Warnings:      decision.Warnings,
			Details:       fmt.Sprintf("%v: %q", domain.ErrUnknownMethod, decision.Method),
		}
	}

	result.ExecutionTime = time.Since(start)

	if result.Success {
		o.statsMu.Lock()
		o.successfulOrders++
		if decision.ExpectedFillPrice > 0 && decision.OrderSize > 0 {
			expectedCost := float64(decision.OrderSize) * decision.ExpectedFillPrice
			actualSlippage := math.Abs(result.TotalCost-expectedCost) / expectedCost
			if saved := decision.ExpectedSlippage - actualSlippage; saved > 0 {
				o.totalSlippageSaved += saved
			}
		}
		o.statsMu.Unlock()

		o.logger.InfoContext(ctx, "order executed",
			slog.String("ticker", ticker),
			slog.String("method", string(result.MethodUsed)),
			slog.Int("filled", result.FilledQuantity),
			slog.Float64("avg_price", result.AverageFillPrice),
		)
	}
	return result
}

// executeMarket places a single market order and polls fills once after a
// fixed wait. An elapsed wait with zero fills is "no fills", not an error.
func (o *Orchestrator) executeMarket(ctx context.Context, ticker string, side domain.Side, action domain.Action, quantity int) domain.ExecutionResult {
	clientOrderID := uuid.New().String()

	_, err := o.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Ticker:        ticker,
		ClientOrderID: clientOrderID,
		Side:          side,
		Action:        action,
		Count:         quantity,
		Type:          domain.OrderTypeMarket,
	})
	if err != nil {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: domain.ExecMarket,
			Warnings:   []string{err.Error()},
			Details:    fmt.Sprintf("market order failed: %v", err),
		}
	}

	o.sleep(ctx, o.params.MarketFillWait)

	filled, cost, err := o.collectFills(ctx, ticker, clientOrderID)
	if err != nil {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: domain.ExecMarket,
			Warnings:   []string{err.Error()},
			Details:    fmt.Sprintf("fill lookup failed: %v", err),
		}
	}
	if filled == 0 {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: domain.ExecMarket,
			Warnings:   []string{"no fills found"},
			Details:    "order placed but no fills received",
		}
	}

	avg := cost / float64(filled)
	return domain.ExecutionResult{
		Success:          true,
		FilledQuantity:   filled,
		AverageFillPrice: avg,
		TotalCost:        cost,
		Slippage:         0.01, // realized slippage refined by the caller's expected price
		MethodUsed:       domain.ExecMarket,
		Details:          fmt.Sprintf("market order filled: %d @ %.2f", filled, avg),
	}
}

// executeLimit attempts a price-bounded order. A client-level placement
// failure falls back to the market path; the fallback is always logged as a
// warning, never silent.
func (o *Orchestrator) executeLimit(ctx context.Context, ticker string, side domain.Side, action domain.Action, quantity int, limitPrice, maxSlippage float64) domain.ExecutionResult {
	target := limitPrice
	if target <= 0 {
		market, err := o.exchange.GetMarket(ctx, ticker)
		if err == nil {
			target = market.SidePrice(side, action)
		}
	}
	if target <= 0 {
		target = 0.5
	}

	// Bound the price by the slippage budget: pay a little more to fill a
	// buy, accept a little less on a sell.
	bounded := target * (1 + maxSlippage)
	if action == domain.ActionSell {
		bounded = target * (1 - maxSlippage)
	}
	bounded = math.Max(0.01, math.Min(0.99, bounded))

	clientOrderID := uuid.New().String()
	_, err := o.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Ticker:        ticker,
		ClientOrderID: clientOrderID,
		Side:          side,
		Action:        action,
		Count:         quantity,
		Type:          domain.OrderTypeLimit,
		LimitPrice:    bounded,
	})
	if err != nil {
		warning := fmt.Sprintf("limit order failed, falling back to market: %v", err)
		o.logger.WarnContext(ctx, "limit order fallback",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		result := o.executeMarket(ctx, ticker, side, action, quantity)
		result.Warnings = append([]string{warning}, result.Warnings...)
		return result
	}

	o.sleep(ctx, o.params.LimitFillWait)

	filled, cost, err := o.collectFills(ctx, ticker, clientOrderID)
	if err != nil {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: domain.ExecSmartLimit,
			Warnings:   []string{err.Error()},
			Details:    fmt.Sprintf("fill lookup failed: %v", err),
		}
	}
	if filled == 0 {
		return domain.ExecutionResult{
			Success:    false,
			MethodUsed: domain.ExecSmartLimit,
			Warnings:   []string{"no fills found"},
			Details:    "limit order placed but no fills received",
		}
	}

	avg := cost / float64(filled)
	return domain.ExecutionResult{
		Success:          true,
		FilledQuantity:   filled,
		AverageFillPrice: avg,
		TotalCost:        cost,
		Slippage:         math.Abs(avg-target) / target,
		MethodUsed:       domain.ExecSmartLimit,
		Details:          fmt.Sprintf("limit order filled: %d @ %.2f", filled, avg),
	}
}

// executeIceberg submits market-order chunks sequentially until the full
// quantity is placed. A failed chunk records a warning and the loop
// continues; chunk N+1 never starts before chunk N's attempt completes and
// the delay elapses. The delay is skipped before the first chunk and after
// the last.
func (o *Orchestrator) executeIceberg(ctx context.Context, ticker string, side domain.Side, action domain.Action, totalQuantity, chunkSize int, delay time.Duration) domain.ExecutionResult {
	if chunkSize <= 0 {
		chunkSize = totalQuantity
	}

	var (
		filledTotal int
		costTotal   float64
		warnings    []string
	)

	remaining := totalQuantity
	for remaining > 0 {
		chunk := chunkSize
		if chunk > remaining {
			chunk = remaining
		}

		result := o.executeMarket(ctx, ticker, side, action, chunk)
		if result.Success {
			filledTotal += result.FilledQuantity
			costTotal += result.TotalCost
		} else {
			warnings = append(warnings, fmt.Sprintf("chunk failed: %s", result.Details))
		}

		remaining -= chunk
		if remaining > 0 {
			o.sleep(ctx, delay)
		}
	}

	avg := 0.0
	if filledTotal > 0 {
		avg = costTotal / float64(filledTotal)
	}

	return domain.ExecutionResult{
		Success:          filledTotal > 0,
		FilledQuantity:   filledTotal,
		AverageFillPrice: avg,
		TotalCost:        costTotal,
		Slippage:         0.015,
		MethodUsed:       domain.ExecIceberg,
		Warnings:         warnings,
		Details:          fmt.Sprintf("iceberg order: %d/%d filled @ %.2f", filledTotal, totalQuantity, avg),
	}
}

// collectFills aggregates this client order's fills from one poll.
func (o *Orchestrator) collectFills(ctx context.Context, ticker, clientOrderID string) (int, float64, error) {
	fills, err := o.exchange.GetFills(ctx, ticker, o.params.FillFetchLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("engine: get fills %s: %w", ticker, err)
	}

	var filled int
	var cost float64
	for _, f := range fills {
		if f.ClientOrderID != clientOrderID {
			continue
		}
		filled += f.Count
		cost += float64(f.Count) * f.Price
	}
	return filled, cost, nil
}

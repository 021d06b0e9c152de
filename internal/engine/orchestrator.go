package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// Orchestrator fuses the three analyzers into a single go/no-go decision per
// order intent and then carries the decision out against the exchange. It is
// the only entry point a calling strategy needs: Decide, then Execute.
//
// Every failure mode surfaces as a typed decision or result; no error ever
// escapes Decide or Execute, so the trading loop can uniformly
// log-and-continue.
type Orchestrator struct {
	exchange  Exchange
	micro     *MicrostructureAnalyzer
	flow      *AdversarialDetector
	inventory *InventoryManager
	params    Params
	logger    *slog.Logger

	// sleep is context-aware and replaceable in tests.
	sleep func(ctx context.Context, d time.Duration)

	statsMu            sync.Mutex
	totalOrders        int64
	successfulOrders   int64
	avoidedToxicTrades int64
	totalSlippageSaved float64
}

// NewOrchestrator wires the engine: one microstructure analyzer, one
// adversarial detector, and one inventory manager, all owned by this
// instance so separate orchestrators never share per-ticker state.
func NewOrchestrator(exchange Exchange, positions domain.PositionStore, params Params, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		exchange:  exchange,
		micro:     NewMicrostructureAnalyzer(exchange, params, logger),
		flow:      NewAdversarialDetector(params, logger),
		inventory: NewInventoryManager(positions, params, logger),
		params:    params,
		logger:    logger.With(slog.String("component", "orchestrator")),
		sleep:     sleepCtx,
	}
}

// Microstructure exposes the book analyzer to collaborators (quote layer).
func (o *Orchestrator) Microstructure() *MicrostructureAnalyzer { return o.micro }

// Detector exposes the flow detector so feeds can record the trade tape.
func (o *Orchestrator) Detector() *AdversarialDetector { return o.flow }

// Inventory exposes the inventory manager to the quote layer.
func (o *Orchestrator) Inventory() *InventoryManager { return o.inventory }

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func cancelDecision(urgency domain.Urgency, safety float64, warnings []string, reason string) domain.ExecutionDecision {
	return domain.ExecutionDecision{
		ShouldExecute: false,
		Method:        domain.ExecCancel,
		SafetyScore:   safety,
		Warnings:      warnings,
		Reasoning:     reason,
		Urgency:       urgency,
	}
}

// Decide runs the strictly ordered gate sequence over one intent. Any gate
// may short-circuit to a cancel decision; a cancel is immediate and final
// and guarantees no order reaches the exchange.
func (o *Orchestrator) Decide(ctx context.Context, intent domain.OrderIntent, totalCapital float64) domain.ExecutionDecision {
	log := o.logger.With(
		slog.String("ticker", intent.Ticker),
		slog.String("side", string(intent.Side)),
		slog.String("action", string(intent.Action)),
		slog.Int("quantity", intent.Quantity),
		slog.String("urgency", string(intent.Urgency)),
	)
	log.InfoContext(ctx, "analyzing execution")

	urgency := intent.Urgency
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}
	quantity := intent.Quantity
	var warnings []string

	// Gate 1: order book snapshot.
	book, err := o.micro.Snapshot(ctx, intent.Ticker, intent.Side)
	if err != nil || book == nil {
		return cancelDecision(urgency, 1.0, nil, "no book data")
	}

	// Gate 2: market-condition skip.
	if skip, reason := o.micro.ShouldSkip(*book); skip {
		log.WarnContext(ctx, "skipping trade", slog.String("reason", reason))
		return cancelDecision(urgency, 1.0, nil, reason)
	}

	// Gate 3: flow safety.
	safety, safetyWarnings := o.flow.SafetyScore(intent.Ticker)
	if safety < o.params.MinDecisionSafety {
		log.WarnContext(ctx, "trade safety too low", slog.Float64("safety", safety))
		o.statsMu.Lock()
		o.avoidedToxicTrades++
		o.statsMu.Unlock()
		reason := fmt.Sprintf("safety score %.0f%% too low", safety*100)
		if len(safetyWarnings) > 0 {
			reason += " | " + strings.Join(safetyWarnings, " | ")
		}
		return cancelDecision(urgency, safety, safetyWarnings, reason)
	}
	warnings = append(warnings, safetyWarnings...)

	// Gate 4: front-running. Urgent orders push through with a warning.
	targetPrice := intent.TargetPrice
	if targetPrice <= 0 {
		targetPrice = book.MidPrice
	}
	if fr := o.flow.FrontRunning(intent.Ticker, intent.Action, targetPrice, quantity); fr != nil {
		if fr.Severity > o.params.FrontRunSevereLimit && urgency != domain.UrgencyUrgent {
			log.WarnContext(ctx, "possible front-running, delaying",
				slog.Float64("severity", fr.Severity))
			warnings = append(warnings, fr.Description)
			return cancelDecision(urgency, safety, warnings, "delaying due to potential front-running")
		}
		warnings = append(warnings, fr.Description)
	}

	// Gate 5: market impact. Absence degrades to a size heuristic.
	var (
		method           domain.ExecMethod
		chunks           int
		expectedSlippage float64
		expectedFill     float64
		impactReasoning  string
	)
	impact, impactErr := o.micro.EstimateImpact(ctx, intent.Ticker, quantity, intent.Side, intent.Action)
	if impactErr == nil && impact != nil {
		method = impact.RecommendedMethod
		chunks = impact.ChunkCount
		expectedSlippage = impact.SlippagePct
		expectedFill = impact.ExpectedFillPrice
		impactReasoning = impact.Reasoning
	} else {
		warnings = append(warnings, "cannot estimate market impact")
		if quantity <= 10 {
			method = domain.ExecLimit
			chunks = 1
		} else {
			method = domain.ExecIceberg
			chunks = maxInt(3, quantity/10)
		}
		expectedSlippage = book.SpreadPct / 2
		expectedFill = book.MidPrice
	}

	// Gate 6: inventory. Adding to an already-risky position halves size
	// unless the order is urgent. A store failure degrades to no adjustment.
	inv, invErr := o.inventory.State(ctx, intent.Ticker, book.MidPrice, totalCapital)
	if invErr != nil {
		log.WarnContext(ctx, "inventory state unavailable", slog.String("error", invErr.Error()))
		warnings = append(warnings, "inventory state unavailable")
	} else {
		addingToPosition := (intent.Action == domain.ActionBuy && inv.NetPosition > 0) ||
			(intent.Action == domain.ActionSell && inv.NetPosition < 0)
		if addingToPosition && inv.InventoryRisk > o.params.HighInventoryRisk {
			warnings = append(warnings, fmt.Sprintf("high inventory risk %.0f%%", inv.InventoryRisk*100))
			if urgency != domain.UrgencyUrgent {
				quantity = maxInt(1, quantity/2)
				warnings = append(warnings, fmt.Sprintf("reduced order size to %d due to inventory risk", quantity))
			}
		}
	}

	// Gate 7: urgency mapping.
	var maxSlippage float64
	switch urgency {
	case domain.UrgencyUrgent:
		method = domain.ExecMarket
		chunks = 1
		maxSlippage = 0.05
	case domain.UrgencyHigh:
		if method == domain.ExecTWAP {
			method = domain.ExecIceberg
		}
		maxSlippage = 0.03
	case domain.UrgencyLow:
		method = domain.ExecLimit
		maxSlippage = 0.01
	default:
		maxSlippage = 0.02
	}

	// Gate 8: optimal limit price.
	var limitPrice float64
	if method == domain.ExecLimit || method == domain.ExecSmartLimit {
		limitPrice = o.micro.OptimalPrice(*book, intent.Action, aggressiveness(urgency))
	}

	// Gate 9: chunk parameters. Ceil division keeps chunkSize*chunks >=
	// quantity with at most one short final chunk.
	var chunkSize int
	var delay time.Duration
	if chunks > 1 {
		chunkSize = maxInt(1, (quantity+chunks-1)/chunks)
		switch urgency {
		case domain.UrgencyUrgent:
			delay = 500 * time.Millisecond
		case domain.UrgencyHigh:
			delay = time.Second
		case domain.UrgencyLow:
			delay = 5 * time.Second
		default:
			delay = 2 * time.Second
		}
	} else {
		chunks = 1
		chunkSize = quantity
	}

	// Gate 10: book anomaly re-scan. Multiple anomalies force passivity.
	if anomalies := o.micro.Anomalies(intent.Ticker); len(anomalies) > 0 {
		warnings = append(warnings, anomalies...)
		if len(anomalies) >= 2 && urgency != domain.UrgencyUrgent {
			log.WarnContext(ctx, "multiple book anomalies, forcing passive execution")
			method = domain.ExecLimit
		}
	}

	// Gate 11: assemble.
	reasoningParts := []string{
		fmt.Sprintf("book: spread %.1f%%, liquidity %.2f", book.SpreadPct*100, book.LiquidityScore),
		fmt.Sprintf("safety: %.0f%%", safety*100),
		fmt.Sprintf("impact: %.1f%% slippage expected", expectedSlippage*100),
	}
	if impactReasoning != "" {
		reasoningParts = append(reasoningParts, impactReasoning)
	}
	if invErr == nil && inv.InventoryRisk > 0.5 {
		reasoningParts = append(reasoningParts, fmt.Sprintf("inventory risk: %.0f%%", inv.InventoryRisk*100))
	}

	decision := domain.ExecutionDecision{
		ShouldExecute:     true,
		Method:            method,
		LimitPrice:        limitPrice,
		ExpectedFillPrice: expectedFill,
		ExpectedSlippage:  expectedSlippage,
		OrderSize:         quantity,
		ChunkCount:        chunks,
		ChunkSize:         chunkSize,
		DelayBetweenChunk: delay,
		SafetyScore:       safety,
		Warnings:          warnings,
		Reasoning:         strings.Join(reasoningParts, " | "),
		Urgency:           urgency,
		MaxSlippagePct:    maxSlippage,
	}

	log.InfoContext(ctx, "execution decision",
		slog.String("method", string(decision.Method)),
		slog.Int("chunks", decision.ChunkCount),
		slog.Float64("safety", decision.SafetyScore),
	)
	return decision
}

func aggressiveness(u domain.Urgency) float64 {
	switch u {
	case domain.UrgencyLow:
		return 0.2
	case domain.UrgencyHigh:
		return 0.7
	case domain.UrgencyUrgent:
		return 0.9
	default:
		return 0.5
	}
}

// Stats returns the process-lifetime execution counters.
func (o *Orchestrator) Stats() domain.ExecutionStats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	stats := domain.ExecutionStats{
		TotalOrders:        o.totalOrders,
		SuccessfulOrders:   o.successfulOrders,
		AvoidedToxicTrades: o.avoidedToxicTrades,
		TotalSlippageSaved: o.totalSlippageSaved,
	}
	if o.totalOrders > 0 {
		stats.SuccessRate = float64(o.successfulOrders) / float64(o.totalOrders)
	}
	if o.successfulOrders > 0 {
		stats.AvgSlippageSaved = o.totalSlippageSaved / float64(o.successfulOrders)
	}
	return stats
}

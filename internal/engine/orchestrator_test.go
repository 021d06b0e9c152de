package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

func buyIntent(quantity int, urgency domain.Urgency) domain.OrderIntent {
	return domain.OrderIntent{
		Ticker:   "TICK",
		Side:     domain.SideYes,
		Action:   domain.ActionBuy,
		Quantity: quantity,
		Urgency:  urgency,
	}
}

func TestDecideWithoutBookDataCancels(t *testing.T) {
	ex := &fakeExchange{bookErr: errors.New("exchange down")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(10, domain.UrgencyNormal), 10_000)

	assert.False(t, decision.ShouldExecute)
	assert.Equal(t, domain.ExecCancel, decision.Method)
	assert.Equal(t, "no book data", decision.Reasoning)

	// Executing the cancel must never reach the exchange.
	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)
	assert.False(t, result.Success)
	assert.Empty(t, ex.placed())
	assert.Zero(t, o.Stats().TotalOrders)
}

func TestDecideSkipsWideSpread(t *testing.T) {
	wide := domain.OrderBook{
		Ticker: "TICK",
		Yes: domain.BookSide{
			Bids: []domain.PriceLevel{{Price: 0.40, Quantity: 200}},
			Asks: []domain.PriceLevel{{Price: 0.60, Quantity: 200}},
		},
		Timestamp: time.Now().UTC(),
	}
	o := newTestOrchestrator(&fakeExchange{book: wide}, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(10, domain.UrgencyNormal), 10_000)
	assert.False(t, decision.ShouldExecute)
	assert.Contains(t, decision.Reasoning, "spread too wide")
}

func TestDecideUnsafeMarketCancels(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	// Toxic flow plus two spoofing detections drag safety below the
	// decision threshold.
	recordToxicFlow(o.Detector(), "TICK")
	for i := 0; i < 2; i++ {
		require.NotNil(t, o.Detector().Spoofing("TICK", spoofChanges("TICK", 3, 25)))
	}

	decision := o.Decide(context.Background(), buyIntent(10, domain.UrgencyNormal), 10_000)

	assert.False(t, decision.ShouldExecute)
	assert.Equal(t, domain.ExecCancel, decision.Method)
	assert.Contains(t, decision.Reasoning, "too low")
	assert.NotEmpty(t, decision.Warnings)
	assert.Equal(t, int64(1), o.Stats().AvoidedToxicTrades)
}

func TestDecideDelaysOnSevereFrontRunning(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	// Four small same-direction prints above our target: enough volume to
	// flag severe front-running without making overall flow toxic.
	now := time.Now().UTC()
	for i, p := range []float64{0.52, 0.53, 0.54, 0.55} {
		o.Detector().RecordTrade("TICK", domain.ActionBuy, p, 10,
			now.Add(time.Duration(i-4)*time.Second))
	}

	intent := buyIntent(10, domain.UrgencyNormal)
	intent.TargetPrice = 0.40

	decision := o.Decide(context.Background(), intent, 10_000)
	assert.False(t, decision.ShouldExecute)
	assert.Equal(t, "delaying due to potential front-running", decision.Reasoning)
}

func TestDecideUrgentOverridesFrontRunning(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	now := time.Now().UTC()
	for i, p := range []float64{0.52, 0.53, 0.54, 0.55} {
		o.Detector().RecordTrade("TICK", domain.ActionBuy, p, 10,
			now.Add(time.Duration(i-4)*time.Second))
	}

	intent := buyIntent(10, domain.UrgencyUrgent)
	intent.TargetPrice = 0.40

	decision := o.Decide(context.Background(), intent, 10_000)
	assert.True(t, decision.ShouldExecute)
	assert.NotEmpty(t, decision.Warnings)
}

func TestDecideUrgentUsesMarketOrder(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyUrgent), 10_000)

	require.True(t, decision.ShouldExecute)
	assert.Equal(t, domain.ExecMarket, decision.Method)
	assert.Equal(t, 1, decision.ChunkCount)
	assert.Equal(t, 20, decision.ChunkSize)
	assert.InDelta(t, 0.05, decision.MaxSlippagePct, 1e-9)
}

func TestDecideLowUrgencyPrefersLimit(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyLow), 10_000)

	require.True(t, decision.ShouldExecute)
	assert.Equal(t, domain.ExecLimit, decision.Method)
	assert.InDelta(t, 0.01, decision.MaxSlippagePct, 1e-9)
	assert.Greater(t, decision.LimitPrice, 0.0)
	assert.LessOrEqual(t, decision.LimitPrice, 0.99)
}

func TestDecideChunksCoverFullQuantity(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(403, domain.UrgencyNormal), 10_000)

	require.True(t, decision.ShouldExecute)
	assert.Equal(t, domain.ExecTWAP, decision.Method)
	assert.Greater(t, decision.ChunkCount, 1)
	assert.GreaterOrEqual(t, decision.ChunkSize*decision.ChunkCount, decision.OrderSize)
	assert.Equal(t, 2*time.Second, decision.DelayBetweenChunk)
}

func TestDecideHalvesSizeOnHighInventoryRisk(t *testing.T) {
	// A long book near its cap makes further buys risky.
	store := &fakePositionStore{open: []domain.Position{yesPosition("TICK", 95)}}
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, store)

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyNormal), 250)

	require.True(t, decision.ShouldExecute)
	assert.Equal(t, 10, decision.OrderSize)

	joined := ""
	for _, w := range decision.Warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "high inventory risk")
	assert.Contains(t, joined, "reduced order size")
}

func TestDecideInventoryErrorDegradesToWarning(t *testing.T) {
	store := &fakePositionStore{openErr: errors.New("db down")}
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, store)

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyNormal), 10_000)

	require.True(t, decision.ShouldExecute)
	assert.Contains(t, decision.Warnings, "inventory state unavailable")
	assert.Equal(t, 20, decision.OrderSize)
}

func TestExecuteMarketOrder(t *testing.T) {
	ex := &fakeExchange{
		book:  balancedBook("TICK"),
		fills: []domain.Fill{{Count: 20, Price: 0.50, IsTaker: true}},
	}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyUrgent), 10_000)
	require.True(t, decision.ShouldExecute)

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecMarket, result.MethodUsed)
	assert.Equal(t, 20, result.FilledQuantity)
	assert.InDelta(t, 0.50, result.AverageFillPrice, 1e-9)
	assert.InDelta(t, 10.0, result.TotalCost, 1e-9)

	placed := ex.placed()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.OrderTypeMarket, placed[0].Type)
	assert.NotEmpty(t, placed[0].ClientOrderID)

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.SuccessfulOrders)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}

func TestExecuteMarketOrderNoFills(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyUrgent), 10_000)
	require.True(t, decision.ShouldExecute)

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.False(t, result.Success)
	assert.Contains(t, result.Warnings, "no fills found")
	assert.Equal(t, int64(1), o.Stats().TotalOrders)
	assert.Equal(t, int64(0), o.Stats().SuccessfulOrders)
}

func TestExecuteLimitOrder(t *testing.T) {
	ex := &fakeExchange{
		book:  balancedBook("TICK"),
		fills: []domain.Fill{{Count: 20, Price: 0.50}},
	}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyLow), 10_000)
	require.True(t, decision.ShouldExecute)
	require.Equal(t, domain.ExecLimit, decision.Method)

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecSmartLimit, result.MethodUsed)

	placed := ex.placed()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.OrderTypeLimit, placed[0].Type)
	assert.Greater(t, placed[0].LimitPrice, 0.0)
	assert.LessOrEqual(t, placed[0].LimitPrice, 0.99)
}

func TestExecuteLimitFallsBackToMarket(t *testing.T) {
	ex := &fakeExchange{
		book:     balancedBook("TICK"),
		limitErr: errors.New("limit rejected"),
		fills:    []domain.Fill{{Count: 20, Price: 0.51}},
	}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := o.Decide(context.Background(), buyIntent(20, domain.UrgencyLow), 10_000)
	require.True(t, decision.ShouldExecute)

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecMarket, result.MethodUsed)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "falling back to market")

	placed := ex.placed()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.OrderTypeMarket, placed[0].Type)
}

func TestExecuteIcebergChunksSequentially(t *testing.T) {
	ex := &fakeExchange{
		book:  balancedBook("TICK"),
		fills: []domain.Fill{{Count: 10, Price: 0.50}},
	}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	var sleeps []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) { sleeps = append(sleeps, d) }

	decision := domain.ExecutionDecision{
		ShouldExecute:     true,
		Method:            domain.ExecIceberg,
		OrderSize:         25,
		ChunkCount:        3,
		ChunkSize:         10,
		DelayBetweenChunk: 2 * time.Second,
	}

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecIceberg, result.MethodUsed)

	placed := ex.placed()
	require.Len(t, placed, 3)
	assert.Equal(t, 10, placed[0].Count)
	assert.Equal(t, 10, placed[1].Count)
	assert.Equal(t, 5, placed[2].Count)

	// Inter-chunk delays only: two between three chunks, none after the
	// last. Each chunk also waits once for fills.
	interChunk := 0
	for _, d := range sleeps {
		if d == 2*time.Second {
			interChunk++
		}
	}
	assert.Equal(t, 2, interChunk)
}

func TestExecuteTWAPReportsMethod(t *testing.T) {
	ex := &fakeExchange{
		book:  balancedBook("TICK"),
		fills: []domain.Fill{{Count: 10, Price: 0.50}},
	}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := domain.ExecutionDecision{
		ShouldExecute: true,
		Method:        domain.ExecTWAP,
		OrderSize:     20,
		ChunkCount:    2,
	}

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)
	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecTWAP, result.MethodUsed)
	assert.Len(t, ex.placed(), 2)
}

func TestExecuteUnknownMethodFails(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	o := newTestOrchestrator(ex, &fakePositionStore{})

	decision := domain.ExecutionDecision{
		ShouldExecute: true,
		Method:        domain.ExecMethod("teleport"),
		OrderSize:     10,
	}

	result := o.Execute(context.Background(), "TICK", domain.SideYes, domain.ActionBuy, decision)

	assert.False(t, result.Success)
	assert.Contains(t, result.Details, "teleport")
	assert.Empty(t, ex.placed())
}

func TestStatsStartEmpty(t *testing.T) {
	o := newTestOrchestrator(&fakeExchange{}, &fakePositionStore{})

	stats := o.Stats()
	assert.Zero(t, stats.TotalOrders)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.AvoidedToxicTrades)
}

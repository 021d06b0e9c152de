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

func newTestAnalyzer(ex *fakeExchange) *MicrostructureAnalyzer {
	return NewMicrostructureAnalyzer(ex, DefaultParams(), testLogger())
}

func TestSnapshotFetchFailure(t *testing.T) {
	ex := &fakeExchange{bookErr: errors.New("boom")}
	a := newTestAnalyzer(ex)

	snap, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, domain.ErrNoBookData)
}

func TestSnapshotOneSidedBook(t *testing.T) {
	book := balancedBook("TICK")
	book.Yes.Asks = nil
	ex := &fakeExchange{book: book}
	a := newTestAnalyzer(ex)

	snap, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, domain.ErrNoBookData)
}

func TestSnapshotDerivesMetrics(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	snap, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.InDelta(t, 0.49, snap.BestBid, 1e-9)
	assert.InDelta(t, 0.50, snap.BestAsk, 1e-9)
	assert.InDelta(t, 0.495, snap.MidPrice, 1e-9)
	assert.InDelta(t, 0.01, snap.Spread, 1e-9)
	assert.Equal(t, 300, snap.BidDepthFive)
	assert.Equal(t, 300, snap.AskDepthFive)
	assert.InDelta(t, 0.0, snap.DepthImbalance, 1e-9)
	assert.Equal(t, 600, snap.TotalLiquidity)
	assert.InDelta(t, 1.0, snap.LiquidityScore, 1e-9)
}

func TestShouldSkipConditions(t *testing.T) {
	a := newTestAnalyzer(&fakeExchange{})

	healthy := domain.BookSnapshot{
		SpreadPct: 0.02, TotalLiquidity: 600, LiquidityScore: 1.0,
		BidDepthFive: 300, AskDepthFive: 300,
	}

	tests := []struct {
		name   string
		mutate func(*domain.BookSnapshot)
		skip   bool
		reason string
	}{
		{"healthy", func(s *domain.BookSnapshot) {}, false, "acceptable"},
		{"wide spread", func(s *domain.BookSnapshot) { s.SpreadPct = 0.08 }, true, "spread too wide"},
		{"illiquid", func(s *domain.BookSnapshot) { s.TotalLiquidity = 20 }, true, "insufficient liquidity"},
		{"thin", func(s *domain.BookSnapshot) { s.LiquidityScore = 0.1 }, true, "market too thin"},
		{"one-sided", func(s *domain.BookSnapshot) { s.AskDepthFive = 0 }, true, "one-sided"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := healthy
			tc.mutate(&snap)
			skip, reason := a.ShouldSkip(snap)
			assert.Equal(t, tc.skip, skip)
			assert.Contains(t, reason, tc.reason)
		})
	}
}

func TestEstimateImpactSmallOrder(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	// 30 contracts against 300 of five-level depth fills at the touch.
	est, err := a.EstimateImpact(context.Background(), "TICK", 30, domain.SideYes, domain.ActionBuy)
	require.NoError(t, err)

	assert.InDelta(t, 0.50, est.ExpectedFillPrice, 1e-9)
	assert.InDelta(t, 0.001, est.SlippagePct, 1e-9)
	assert.Equal(t, domain.ExecLimit, est.RecommendedMethod)
	assert.Equal(t, 1, est.ChunkCount)
}

func TestEstimateImpactMediumOrderSplits(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	// 250 of 300 visible contracts walks most of the book; impact over the
	// threshold forces an iceberg.
	est, err := a.EstimateImpact(context.Background(), "TICK", 250, domain.SideYes, domain.ActionBuy)
	require.NoError(t, err)

	assert.Greater(t, est.PriceImpact, 0.02)
	assert.Equal(t, domain.ExecIceberg, est.RecommendedMethod)
	assert.Equal(t, 12, est.ChunkCount) // max(3, 250/20)
	assert.Greater(t, est.ExpectedFillPrice, 0.50)
}

func TestEstimateImpactOversizedOrder(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	est, err := a.EstimateImpact(context.Background(), "TICK", 400, domain.SideYes, domain.ActionBuy)
	require.NoError(t, err)

	assert.Equal(t, domain.ExecTWAP, est.RecommendedMethod)
	assert.Equal(t, 40, est.ChunkCount) // max(5, 400/10)
}

func TestEstimateImpactSellSideUsesBids(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	est, err := a.EstimateImpact(context.Background(), "TICK", 400, domain.SideYes, domain.ActionSell)
	require.NoError(t, err)

	// Oversized sell slips below the best bid.
	assert.Less(t, est.ExpectedFillPrice, 0.49)
}

func TestOptimalPriceInterpolation(t *testing.T) {
	a := newTestAnalyzer(&fakeExchange{})
	snap := domain.BookSnapshot{BestBid: 0.48, BestAsk: 0.52, MidPrice: 0.50}

	assert.InDelta(t, 0.50, a.OptimalPrice(snap, domain.ActionBuy, 0), 1e-9)
	assert.InDelta(t, 0.51, a.OptimalPrice(snap, domain.ActionBuy, 0.5), 1e-9)
	assert.InDelta(t, 0.52, a.OptimalPrice(snap, domain.ActionBuy, 1), 1e-9)
	assert.InDelta(t, 0.48, a.OptimalPrice(snap, domain.ActionSell, 1), 1e-9)
}

func TestOptimalPriceClampedToValidRange(t *testing.T) {
	a := newTestAnalyzer(&fakeExchange{})

	high := domain.BookSnapshot{BestBid: 0.98, BestAsk: 1.00, MidPrice: 0.99}
	assert.InDelta(t, 0.99, a.OptimalPrice(high, domain.ActionBuy, 1), 1e-9)

	low := domain.BookSnapshot{BestBid: 0.00, BestAsk: 0.02, MidPrice: 0.01}
	assert.InDelta(t, 0.01, a.OptimalPrice(low, domain.ActionSell, 1), 1e-9)
}

func TestAnomaliesNeedTwoSnapshots(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	_, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
	require.NoError(t, err)
	assert.Nil(t, a.Anomalies("TICK"))
}

func TestAnomaliesDetectWithdrawalAndDepthLoss(t *testing.T) {
	ex := &fakeExchange{book: balancedBook("TICK")}
	a := newTestAnalyzer(ex)

	_, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
	require.NoError(t, err)

	// Makers pull: spread blows out and depth collapses.
	thin := domain.OrderBook{
		Ticker: "TICK",
		Yes: domain.BookSide{
			Bids: []domain.PriceLevel{{Price: 0.45, Quantity: 10}},
			Asks: []domain.PriceLevel{{Price: 0.55, Quantity: 10}},
		},
		Timestamp: time.Now().UTC(),
	}
	ex.mu.Lock()
	ex.book = thin
	ex.mu.Unlock()

	_, err = a.Snapshot(context.Background(), "TICK", domain.SideYes)
	require.NoError(t, err)

	anomalies := a.Anomalies("TICK")
	require.NotEmpty(t, anomalies)

	joined := ""
	for _, an := range anomalies {
		joined += an + "\n"
	}
	assert.Contains(t, joined, "LIQUIDITY_WITHDRAWAL")
	assert.Contains(t, joined, "DEPTH_DISAPPEARANCE")
}

func TestAnomaliesDetectExtremeImbalance(t *testing.T) {
	lopsided := domain.OrderBook{
		Ticker: "TICK",
		Yes: domain.BookSide{
			Bids: []domain.PriceLevel{{Price: 0.49, Quantity: 450}},
			Asks: []domain.PriceLevel{{Price: 0.50, Quantity: 20}},
		},
		Timestamp: time.Now().UTC(),
	}
	ex := &fakeExchange{book: lopsided}
	a := newTestAnalyzer(ex)

	for i := 0; i < 2; i++ {
		_, err := a.Snapshot(context.Background(), "TICK", domain.SideYes)
		require.NoError(t, err)
	}

	anomalies := a.Anomalies("TICK")
	require.NotEmpty(t, anomalies)
	assert.Contains(t, anomalies[len(anomalies)-1], "EXTREME_IMBALANCE")
	assert.Contains(t, anomalies[len(anomalies)-1], "BUY")
}

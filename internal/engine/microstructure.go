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

// MicrostructureAnalyzer builds point-in-time views of a market's order book
// and estimates the price impact of candidate orders. Kalshi books are thin;
// order placement and sizing decisions live or die on this analysis.
//
// Snapshots are cached per ticker for a short retention window so the
// anomaly scan can compare consecutive book states. The cache is the only
// mutable state; a per-instance mutex guards it.
type MicrostructureAnalyzer struct {
	books  BookSource
	params Params
	logger *slog.Logger

	mu        sync.Mutex
	snapshots map[string][]domain.BookSnapshot
}

// NewMicrostructureAnalyzer creates an analyzer reading books from src.
func NewMicrostructureAnalyzer(src BookSource, params Params, logger *slog.Logger) *MicrostructureAnalyzer {
	return &MicrostructureAnalyzer{
		books:     src,
		params:    params,
		logger:    logger.With(slog.String("component", "microstructure")),
		snapshots: make(map[string][]domain.BookSnapshot),
	}
}

// Snapshot fetches the current book and derives the microstructure view for
// one contract side. It fails soft: any fetch problem or an empty side
// returns a nil snapshot, which callers must treat as "cannot safely trade".
func (a *MicrostructureAnalyzer) Snapshot(ctx context.Context, ticker string, side domain.Side) (*domain.BookSnapshot, error) {
	book, err := a.books.GetOrderbook(ctx, ticker)
	if err != nil {
		a.logger.WarnContext(ctx, "order book fetch failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("engine: snapshot %s: %w", ticker, domain.ErrNoBookData)
	}

	sideBook := book.Yes
	if side == domain.SideNo {
		sideBook = book.No
	}
	if len(sideBook.Bids) == 0 || len(sideBook.Asks) == 0 {
		return nil, fmt.Errorf("engine: snapshot %s: one-sided book: %w", ticker, domain.ErrNoBookData)
	}

	snap := buildSnapshot(ticker, side, sideBook, a.params)
	a.cacheSnapshot(ticker, snap)
	return &snap, nil
}

func buildSnapshot(ticker string, side domain.Side, sb domain.BookSide, p Params) domain.BookSnapshot {
	bestBid := sb.Bids[0].Price
	bestAsk := sb.Asks[0].Price
	spread := bestAsk - bestBid
	mid := (bestBid + bestAsk) / 2

	spreadPct := 0.0
	if mid > 0 {
		spreadPct = spread / mid
	}

	bidDepthTop := sb.Bids[0].Quantity
	askDepthTop := sb.Asks[0].Quantity
	bidDepth5 := sumDepth(sb.Bids, 5)
	askDepth5 := sumDepth(sb.Asks, 5)

	imbalance := 0.0
	if total := bidDepth5 + askDepth5; total > 0 {
		imbalance = float64(bidDepth5-askDepth5) / float64(total)
	}

	totalLiquidity := sumDepth(sb.Bids, len(sb.Bids)) + sumDepth(sb.Asks, len(sb.Asks))

	return domain.BookSnapshot{
		Ticker:         ticker,
		Side:           side,
		Timestamp:      time.Now().UTC(),
		BestBid:        bestBid,
		BestAsk:        bestAsk,
		MidPrice:       mid,
		Spread:         spread,
		SpreadPct:      spreadPct,
		BidDepthTop:    bidDepthTop,
		AskDepthTop:    askDepthTop,
		BidDepthFive:   bidDepth5,
		AskDepthFive:   askDepth5,
		DepthImbalance: imbalance,
		PricePressure:  imbalance * (1 - spreadPct),
		TotalLiquidity: totalLiquidity,
		LiquidityScore: math.Min(float64(totalLiquidity)/float64(p.FullLiquidityDepth), 1.0),
	}
}

func sumDepth(levels []domain.PriceLevel, n int) int {
	if n > len(levels) {
		n = len(levels)
	}
	total := 0
	for _, lvl := range levels[:n] {
		total += lvl.Quantity
	}
	return total
}

func (a *MicrostructureAnalyzer) cacheSnapshot(ticker string, snap domain.BookSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := snap.Timestamp.Add(-a.params.SnapshotRetention)
	kept := a.snapshots[ticker][:0]
	for _, s := range a.snapshots[ticker] {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	a.snapshots[ticker] = append(kept, snap)
}

// ShouldSkip reports whether market conditions are too poor to trade at all:
// wide spread, shallow or one-sided book.
func (a *MicrostructureAnalyzer) ShouldSkip(snap domain.BookSnapshot) (bool, string) {
	if snap.SpreadPct > a.params.WideSpreadPct {
		return true, fmt.Sprintf("spread too wide: %.1f%%", snap.SpreadPct*100)
	}
	if snap.TotalLiquidity < a.params.MinLiquidity {
		return true, fmt.Sprintf("insufficient liquidity: %d contracts", snap.TotalLiquidity)
	}
	if snap.LiquidityScore < a.params.MinLiquidityScore {
		return true, fmt.Sprintf("market too thin: score %.2f", snap.LiquidityScore)
	}
	if snap.BidDepthFive == 0 || snap.AskDepthFive == 0 {
		return true, "one-sided order book"
	}
	return false, "market conditions acceptable"
}

// EstimateImpact models the expected slippage of pushing quantity contracts
// through the visible book and recommends an execution shape. Fails soft
// like Snapshot.
func (a *MicrostructureAnalyzer) EstimateImpact(ctx context.Context, ticker string, quantity int, side domain.Side, action domain.Action) (*domain.MarketImpactEstimate, error) {
	snap, err := a.Snapshot(ctx, ticker, side)
	if err != nil {
		return nil, err
	}

	// Buys eat the asks, sells eat the bids.
	relevantDepth := snap.AskDepthFive
	topDepth := snap.AskDepthTop
	basePrice := snap.BestAsk
	if action == domain.ActionSell {
		relevantDepth = snap.BidDepthFive
		topDepth = snap.BidDepthTop
		basePrice = snap.BestBid
	}

	var expectedFill, slippagePct float64
	switch {
	case relevantDepth > 0 && quantity <= relevantDepth/5:
		// Small order, fills at the touch.
		expectedFill = basePrice
		slippagePct = 0.001
	case quantity <= relevantDepth:
		// Medium order walks part of the visible book.
		penetration := float64(quantity) / float64(relevantDepth)
		slippagePct = penetration * snap.SpreadPct
		expectedFill = applySlippage(basePrice, slippagePct, action)
	default:
		// Order exceeds visible depth entirely.
		slippagePct = snap.SpreadPct * 1.5
		expectedFill = applySlippage(basePrice, slippagePct, action)
	}

	slippage := math.Abs(expectedFill - snap.MidPrice)
	priceImpact := 0.0
	if snap.MidPrice > 0 {
		priceImpact = slippage / snap.MidPrice
	}

	var (
		method    domain.ExecMethod
		chunks    int
		reasoning string
	)
	switch {
	case quantity <= topDepth:
		method = domain.ExecLimit
		chunks = 1
		reasoning = fmt.Sprintf("order fits within best level (%d <= %d)", quantity, topDepth)
	case quantity <= relevantDepth:
		if priceImpact > a.params.MaxMarketImpactPct {
			method = domain.ExecIceberg
			chunks = maxInt(3, quantity/20)
			reasoning = fmt.Sprintf("large order split to reduce %.1f%% impact", priceImpact*100)
		} else {
			method = domain.ExecLimit
			chunks = 1
			reasoning = fmt.Sprintf("acceptable impact %.1f%%", priceImpact*100)
		}
	default:
		method = domain.ExecTWAP
		chunks = maxInt(5, quantity/10)
		reasoning = fmt.Sprintf("order too large for book (%d vs %d available)", quantity, relevantDepth)
	}

	return &domain.MarketImpactEstimate{
		Ticker:            ticker,
		Quantity:          quantity,
		Side:              side,
		Action:            action,
		ExpectedFillPrice: expectedFill,
		Slippage:          slippage,
		SlippagePct:       slippagePct,
		PriceImpact:       priceImpact,
		RecommendedMethod: method,
		ChunkCount:        chunks,
		Reasoning:         reasoning,
	}, nil
}

func applySlippage(base, pct float64, action domain.Action) float64 {
	if action == domain.ActionBuy {
		return base * (1 + pct)
	}
	return base * (1 - pct)
}

// OptimalPrice interpolates a limit price between passive (mid) and
// aggressive (touch on the far side). Aggressiveness 0 rests at mid, 1
// crosses the spread. The result is rounded to a cent and clamped to the
// exchange's valid [0.01, 0.99] range.
func (a *MicrostructureAnalyzer) OptimalPrice(snap domain.BookSnapshot, action domain.Action, aggressiveness float64) float64 {
	passive := snap.MidPrice
	aggressive := snap.BestAsk
	if action == domain.ActionSell {
		aggressive = snap.BestBid
	}

	price := passive + aggressiveness*(aggressive-passive)
	price = math.Round(price*100) / 100

	return math.Max(0.01, math.Min(0.99, price))
}

// Anomalies scans the cached snapshot trend for book-level irregularities:
// liquidity withdrawal, vanishing depth, extreme one-sided pressure, and
// quote stuffing. These are distinct from the trade-tape detections in
// AdversarialDetector.
func (a *MicrostructureAnalyzer) Anomalies(ticker string) []string {
	a.mu.Lock()
	snaps := append([]domain.BookSnapshot(nil), a.snapshots[ticker]...)
	a.mu.Unlock()

	if len(snaps) < 2 {
		return nil
	}

	var anomalies []string
	current := snaps[len(snaps)-1]
	previous := snaps[len(snaps)-2]

	if current.SpreadPct > previous.SpreadPct*2 && current.SpreadPct > 0.05 {
		anomalies = append(anomalies, fmt.Sprintf(
			"LIQUIDITY_WITHDRAWAL: spread widened %.1f%% -> %.1f%%",
			previous.SpreadPct*100, current.SpreadPct*100))
	}

	if previous.TotalLiquidity > 50 {
		drop := float64(previous.TotalLiquidity-current.TotalLiquidity) / float64(previous.TotalLiquidity)
		if drop > 0.5 {
			anomalies = append(anomalies, fmt.Sprintf(
				"DEPTH_DISAPPEARANCE: %d -> %d contracts (-%.0f%%)",
				previous.TotalLiquidity, current.TotalLiquidity, drop*100))
		}
	}

	if math.Abs(current.DepthImbalance) > 0.7 {
		direction := "BUY"
		if current.DepthImbalance < 0 {
			direction = "SELL"
		}
		anomalies = append(anomalies, fmt.Sprintf(
			"EXTREME_IMBALANCE: %s pressure %.0f%%", direction, math.Abs(current.DepthImbalance)*100))
	}

	if len(snaps) >= 5 {
		recent := snaps[len(snaps)-5:]
		spreads := make([]float64, len(recent))
		for i, s := range recent {
			spreads[i] = s.SpreadPct
		}
		if vol := stddev(spreads); vol > 0.02 {
			anomalies = append(anomalies, fmt.Sprintf("QUOTE_STUFFING: spread volatility %.1f%%", vol*100))
		}
	}

	return anomalies
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(vals)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

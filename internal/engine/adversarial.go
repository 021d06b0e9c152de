package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// AdversarialDetector maintains a bounded rolling trade tape per market and
// scores how informed or manipulative recent flow looks. The orchestrator
// uses it to avoid trading into toxic flow, front-runners, spoofers, and
// wash traders.
//
// State is keyed by ticker and owned by this instance, never global, so
// separate detectors (for example in tests) do not share tapes. Each
// ticker's tape and anomaly log is guarded by its own mutex; cross-ticker
// calls never contend.
type AdversarialDetector struct {
	params Params
	logger *slog.Logger

	mu      sync.RWMutex
	markets map[string]*marketFlow
}

type marketFlow struct {
	mu        sync.Mutex
	tape      *tradeTape
	anomalies []domain.TradingAnomaly
}

// NewAdversarialDetector creates a detector with empty tapes.
func NewAdversarialDetector(params Params, logger *slog.Logger) *AdversarialDetector {
	return &AdversarialDetector{
		params:  params,
		logger:  logger.With(slog.String("component", "adversarial")),
		markets: make(map[string]*marketFlow),
	}
}

func (d *AdversarialDetector) market(ticker string) *marketFlow {
	d.mu.RLock()
	mf := d.markets[ticker]
	d.mu.RUnlock()
	if mf != nil {
		return mf
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if mf = d.markets[ticker]; mf == nil {
		mf = &marketFlow{tape: newTradeTape(d.params.TapeCapacity)}
		d.markets[ticker] = mf
	}
	return mf
}

// RecordTrade appends one observed trade to the ticker's tape. O(1), never
// blocks beyond the per-ticker mutex.
func (d *AdversarialDetector) RecordTrade(ticker string, action domain.Action, price float64, quantity int, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	mf := d.market(ticker)
	mf.mu.Lock()
	mf.tape.append(domain.FlowTrade{
		Timestamp: ts,
		Action:    action,
		Price:     price,
		Quantity:  quantity,
	})
	mf.mu.Unlock()
}

// Toxicity profiles flow over the lookback window. Returns nil when fewer
// than 3 trades are available: too little data to score.
//
// The imbalance-price factor is deliberately a binary sign-alignment check,
// not a statistical correlation: flow that both leans one way and correctly
// predicts the move is the signature of informed trading, and the binary
// form keeps the score distribution stable.
func (d *AdversarialDetector) Toxicity(ticker string, lookback time.Duration) *domain.OrderFlowProfile {
	if lookback <= 0 {
		lookback = 5 * time.Minute
	}

	mf := d.market(ticker)
	mf.mu.Lock()
	trades := mf.tape.ordered()
	mf.mu.Unlock()

	if len(trades) < 3 {
		return nil
	}

	now := time.Now().UTC()
	cutoff := now.Add(-lookback)
	recent := trades[:0:0]
	for _, t := range trades {
		if t.Timestamp.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) < 3 {
		return nil
	}

	var buyVol, sellVol int
	var notional float64
	for _, t := range recent {
		if t.Action == domain.ActionBuy {
			buyVol += t.Quantity
		} else {
			sellVol += t.Quantity
		}
		notional += t.Price * float64(t.Quantity)
	}
	totalVol := buyVol + sellVol

	imbalance := 0.0
	vwap := 0.0
	if totalVol > 0 {
		imbalance = float64(buyVol-sellVol) / float64(totalVol)
		vwap = notional / float64(totalVol)
	}

	tradesPerMin := float64(len(recent)) / lookback.Minutes()
	avgSize := float64(totalVol) / float64(len(recent))

	firstPrice := recent[0].Price
	lastPrice := recent[len(recent)-1].Price
	movement := 0.0
	if firstPrice > 0 {
		movement = (lastPrice - firstPrice) / firstPrice
	}

	alignment := 0.0
	if sign(imbalance) == sign(movement) {
		alignment = math.Abs(imbalance)
	}
	freqScore := math.Min(1, tradesPerMin/d.params.FrequencySaturation)
	sizeScore := math.Min(1, avgSize/d.params.SizeSaturation)

	toxicity := d.params.ImbalanceWeight*alignment +
		d.params.FrequencyWeight*freqScore +
		d.params.SizeWeight*sizeScore
	toxicity = clamp01(toxicity)

	return &domain.OrderFlowProfile{
		Ticker:          ticker,
		Timestamp:       now,
		BuyVolume:       buyVol,
		SellVolume:      sellVol,
		VolumeImbalance: imbalance,
		TradesPerMinute: tradesPerMin,
		AvgTradeSize:    avgSize,
		PriceMovement:   movement,
		VolumeWeighted:  vwap,
		ToxicityScore:   toxicity,
		IsToxic:         toxicity > d.params.ToxicFlowThreshold,
	}
}

// FrontRunning checks whether recent flow looks like someone trading ahead
// of the given intended order: a burst of same-direction volume exceeding
// twice the order's size whose average price has already moved against it.
func (d *AdversarialDetector) FrontRunning(ticker string, action domain.Action, orderPrice float64, orderSize int) *domain.TradingAnomaly {
	mf := d.market(ticker)
	mf.mu.Lock()
	defer mf.mu.Unlock()

	trades := mf.tape.ordered()
	if len(trades) > 10 {
		trades = trades[len(trades)-10:]
	}

	now := time.Now().UTC()
	cutoff := now.Add(-d.params.FrontRunWindow)

	var sameDirection []domain.FlowTrade
	for _, t := range trades {
		if t.Timestamp.After(cutoff) && t.Action == action {
			sameDirection = append(sameDirection, t)
		}
	}
	if len(sameDirection) < d.params.FrontRunMinTrades {
		return nil
	}

	var totalVolume int
	var priceSum float64
	for _, t := range sameDirection {
		totalVolume += t.Quantity
		priceSum += t.Price
	}
	avgPrice := priceSum / float64(len(sameDirection))

	movedAgainst := avgPrice > orderPrice
	if action == domain.ActionSell {
		movedAgainst = avgPrice < orderPrice
	}
	if !movedAgainst || float64(totalVolume) <= float64(orderSize)*d.params.FrontRunVolumeFactor {
		return nil
	}

	severity := clamp01(float64(totalVolume) / (float64(orderSize) * 5))
	recommended := domain.AnomalyActionDelay
	if severity >= d.params.FrontRunSevereLimit {
		recommended = domain.AnomalyActionUseLimit
	}

	anomaly := domain.TradingAnomaly{
		Ticker:    ticker,
		Timestamp: now,
		Kind:      domain.AnomalyFrontRun,
		Severity:  severity,
		Description: fmt.Sprintf(
			"detected %d %s trades (%d contracts) just before yours, price moved from %.2f to %.2f",
			len(sameDirection), action, totalVolume, orderPrice, avgPrice),
		RecommendedAction: recommended,
	}
	mf.anomalies = append(mf.anomalies, anomaly)
	return &anomaly
}

// Spoofing counts add-then-remove cycles of large resting orders in the
// supplied book-change log. Three or more quick cancels of 20+ contract
// levels flag the market.
func (d *AdversarialDetector) Spoofing(ticker string, changes []domain.BookChange) *domain.TradingAnomaly {
	if len(changes) < 3 {
		return nil
	}

	quickCancels := 0
	for i := 0; i < len(changes)-1; i++ {
		cur, next := changes[i], changes[i+1]
		if cur.Removed || !next.Removed {
			continue
		}
		if next.Timestamp.Sub(cur.Timestamp) < d.params.SpoofCancelWindow &&
			cur.Quantity >= d.params.SpoofMinOrderSize {
			quickCancels++
		}
	}
	if quickCancels < d.params.SpoofCycleThreshold {
		return nil
	}

	anomaly := domain.TradingAnomaly{
		Ticker:            ticker,
		Timestamp:         time.Now().UTC(),
		Kind:              domain.AnomalySpoofing,
		Severity:          clamp01(float64(quickCancels) / 5),
		Description:       fmt.Sprintf("detected %d quick cancel/replace cycles", quickCancels),
		RecommendedAction: domain.AnomalyActionAvoid,
	}

	mf := d.market(ticker)
	mf.mu.Lock()
	mf.anomalies = append(mf.anomalies, anomaly)
	mf.mu.Unlock()
	return &anomaly
}

// WashTrading looks for alternating buy/sell pairs with matching price and
// quantity: volume fabricated without risk transfer.
func (d *AdversarialDetector) WashTrading(ticker string, lookback time.Duration) *domain.TradingAnomaly {
	if lookback <= 0 {
		lookback = 10 * time.Minute
	}

	mf := d.market(ticker)
	mf.mu.Lock()
	defer mf.mu.Unlock()

	cutoff := time.Now().UTC().Add(-lookback)
	trades := mf.tape.ordered()
	recent := trades[:0:0]
	for _, t := range trades {
		if t.Timestamp.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) < 4 {
		return nil
	}

	pairs := 0
	for i := 0; i < len(recent)-1; i++ {
		a, b := recent[i], recent[i+1]
		if a.Action == b.Action {
			continue
		}
		if math.Abs(a.Price-b.Price) < d.params.WashPriceTolerance && a.Quantity == b.Quantity {
			pairs++
		}
	}
	if pairs < d.params.WashPairThreshold {
		return nil
	}

	anomaly := domain.TradingAnomaly{
		Ticker:            ticker,
		Timestamp:         time.Now().UTC(),
		Kind:              domain.AnomalyWashTrading,
		Severity:          clamp01(float64(pairs) / 5),
		Description:       fmt.Sprintf("detected %d matched buy/sell pairs", pairs),
		RecommendedAction: domain.AnomalyActionAvoid,
	}
	mf.anomalies = append(mf.anomalies, anomaly)
	return &anomaly
}

// RecentAnomalies returns anomalies still inside the scoring window. Older
// entries stay in the log for audit but stop penalizing safety.
func (d *AdversarialDetector) RecentAnomalies(ticker string) []domain.TradingAnomaly {
	mf := d.market(ticker)
	mf.mu.Lock()
	defer mf.mu.Unlock()

	cutoff := time.Now().UTC().Add(-d.params.AnomalyWindow)
	var recent []domain.TradingAnomaly
	for _, a := range mf.anomalies {
		if a.Timestamp.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}

// SafetyScore aggregates toxicity and recent anomalies into one score.
// Starts at 1.0; toxic flow costs a fixed penalty and each recent anomaly
// costs severity-weighted penalty. The total penalty is capped so the score
// never drops below 0.1, leaving urgent orders an execution path.
func (d *AdversarialDetector) SafetyScore(ticker string) (float64, []string) {
	var warnings []string
	var penalty float64

	if profile := d.Toxicity(ticker, 5*time.Minute); profile != nil && profile.IsToxic {
		warnings = append(warnings, fmt.Sprintf("toxic order flow: %.0f%%", profile.ToxicityScore*100))
		penalty += d.params.ToxicityPenalty
	}

	for _, a := range d.RecentAnomalies(ticker) {
		warnings = append(warnings, fmt.Sprintf("%s: %s", a.Kind, a.Description))
		penalty += a.Severity * d.params.AnomalyPenaltyWeight
	}

	if penalty > d.params.SafetyPenaltyCap {
		penalty = d.params.SafetyPenaltyCap
	}
	return 1.0 - penalty, warnings
}

// ShouldAvoid reports whether the market's safety score falls below the
// given threshold (or the configured default when minScore is zero).
func (d *AdversarialDetector) ShouldAvoid(ticker string, minScore float64) (bool, string) {
	if minScore <= 0 {
		minScore = d.params.MinSafetyScore
	}

	score, warnings := d.SafetyScore(ticker)
	if score < minScore {
		reason := fmt.Sprintf("safety score %.0f%% below threshold %.0f%%", score*100, minScore*100)
		for _, w := range warnings {
			reason += " | " + w
		}
		return true, reason
	}
	return false, "market conditions safe for trading"
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// tradeTape is a fixed-capacity ring buffer of trades, strictly time-ordered
// by append. Oldest entries are evicted on overflow.
type tradeTape struct {
	buf  []domain.FlowTrade
	next int
	full bool
}

func newTradeTape(capacity int) *tradeTape {
	if capacity <= 0 {
		capacity = 100
	}
	return &tradeTape{buf: make([]domain.FlowTrade, capacity)}
}

func (t *tradeTape) append(tr domain.FlowTrade) {
	t.buf[t.next] = tr
	t.next++
	if t.next == len(t.buf) {
		t.next = 0
		t.full = true
	}
}

func (t *tradeTape) size() int {
	if t.full {
		return len(t.buf)
	}
	return t.next
}

// ordered returns the tape contents oldest first.
func (t *tradeTape) ordered() []domain.FlowTrade {
	if !t.full {
		return append([]domain.FlowTrade(nil), t.buf[:t.next]...)
	}
	out := make([]domain.FlowTrade, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	out = append(out, t.buf[:t.next]...)
	return out
}

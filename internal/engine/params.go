// Package engine implements the execution risk engine: order book
// microstructure analysis, adversarial flow detection, inventory risk
// management, and the orchestrator that fuses them into a single go/no-go
// decision and carries it out against the exchange.
package engine

import "time"

// Params collects every tunable constant of the risk model in one place so
// the scoring formulas can be audited and tested independently of the
// control flow. Zero values are never valid; start from DefaultParams.
type Params struct {
	// Microstructure.
	ThinMarketThreshold int           // below this many resting contracts a market is thin
	WideSpreadPct       float64       // spread fraction of mid above which trading is skipped
	MaxMarketImpactPct  float64       // impact fraction above which orders are split
	MinLiquidity        int           // minimum resting contracts to trade at all
	MinLiquidityScore   float64       // minimum liquidity score to trade
	FullLiquidityDepth  int           // resting contracts at which the score saturates to 1
	SnapshotRetention   time.Duration // trend-cache window for the book anomaly scan

	// Adversarial detection.
	TapeCapacity         int           // ring buffer length per ticker
	ToxicFlowThreshold   float64       // toxicity score above which flow is flagged
	ImbalanceWeight      float64       // toxicity weight: imbalance-price alignment
	FrequencyWeight      float64       // toxicity weight: trade frequency
	SizeWeight           float64       // toxicity weight: average trade size
	FrequencySaturation  float64       // trades/minute at which frequency score is 1
	SizeSaturation       float64       // average contracts at which size score is 1
	FrontRunWindow       time.Duration // recency window for the front-running scan
	FrontRunMinTrades    int           // same-direction trades needed to flag
	FrontRunVolumeFactor float64       // same-direction volume vs order size needed to flag
	FrontRunSevereLimit  float64       // severity above which execution is delayed
	SpoofCancelWindow    time.Duration // add-then-remove window that counts as a cycle
	SpoofMinOrderSize    int           // contracts a level must carry to count
	SpoofCycleThreshold  int           // cycles needed to flag spoofing
	WashPriceTolerance   float64       // price match tolerance for wash pairs
	WashPairThreshold    int           // matched pairs needed to flag wash trading
	AnomalyWindow        time.Duration // anomalies older than this stop penalizing safety
	ToxicityPenalty      float64       // safety penalty when flow is toxic
	AnomalyPenaltyWeight float64       // safety penalty per unit of anomaly severity
	SafetyPenaltyCap     float64       // total safety penalty never exceeds this
	MinSafetyScore       float64       // ShouldAvoid default threshold

	// Inventory.
	MaxInventoryPct   float64 // max fraction of capital in one market
	MaxQuoteSkew      float64 // quote skew magnitude cap
	SkewNormalization float64 // contracts at which raw position skew risk is 1
	BaseSpreadWidth   float64 // base market-making spread
	SizeRiskWeight    float64
	SkewRiskWeight    float64
	PriceRiskWeight   float64
	RebalanceFraction float64 // fraction of max-safe position that triggers rebalancing
	StopQuotingRisk   float64 // inventory risk above which quoting stops
	LiquidationRisk   float64 // inventory risk above which liquidation is forced

	// Orchestrator.
	MinDecisionSafety float64       // safety score below which decisions cancel
	HighInventoryRisk float64       // risk above which size is halved when adding
	MarketFillWait    time.Duration // fill-poll wait after a market order
	LimitFillWait     time.Duration // fill-poll wait after a limit order
	FillFetchLimit    int           // fills requested per poll
}

// DefaultParams returns the production risk model.
func DefaultParams() Params {
	return Params{
		ThinMarketThreshold: 100,
		WideSpreadPct:       0.03,
		MaxMarketImpactPct:  0.02,
		MinLiquidity:        50,
		MinLiquidityScore:   0.2,
		FullLiquidityDepth:  500,
		SnapshotRetention:   5 * time.Minute,

		TapeCapacity:         100,
		ToxicFlowThreshold:   0.6,
		ImbalanceWeight:      0.5,
		FrequencyWeight:      0.3,
		SizeWeight:           0.2,
		FrequencySaturation:  10,
		SizeSaturation:       50,
		FrontRunWindow:       30 * time.Second,
		FrontRunMinTrades:    3,
		FrontRunVolumeFactor: 2,
		FrontRunSevereLimit:  0.7,
		SpoofCancelWindow:    5 * time.Second,
		SpoofMinOrderSize:    20,
		SpoofCycleThreshold:  3,
		WashPriceTolerance:   0.01,
		WashPairThreshold:    3,
		AnomalyWindow:        5 * time.Minute,
		ToxicityPenalty:      0.3,
		AnomalyPenaltyWeight: 0.4,
		SafetyPenaltyCap:     0.9,
		MinSafetyScore:       0.5,

		MaxInventoryPct:   0.20,
		MaxQuoteSkew:      0.50,
		SkewNormalization: 100,
		BaseSpreadWidth:   0.02,
		SizeRiskWeight:    0.5,
		SkewRiskWeight:    0.3,
		PriceRiskWeight:   0.2,
		RebalanceFraction: 0.8,
		StopQuotingRisk:   0.9,
		LiquidationRisk:   0.95,

		MinDecisionSafety: 0.4,
		HighInventoryRisk: 0.7,
		MarketFillWait:    time.Second,
		LimitFillWait:     2 * time.Second,
		FillFetchLimit:    100,
	}
}

// clamp01 bounds v to [0,1]. Severity, toxicity, safety, and inventory risk
// all live on this scale.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

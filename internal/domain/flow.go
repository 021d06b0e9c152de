package domain

import "time"

// FlowTrade is one entry in a market's rolling trade tape.
type FlowTrade struct {
	Timestamp time.Time
	Action    Action // taker direction
	Price     float64
	Quantity  int
}

// OrderFlowProfile summarizes recent order flow for one market. It is
// recomputed on demand from the trade tape and never stored.
type OrderFlowProfile struct {
	Ticker    string
	Timestamp time.Time

	BuyVolume       int
	SellVolume      int
	VolumeImbalance float64 // (buy - sell) / (buy + sell), in [-1,1]

	TradesPerMinute float64
	AvgTradeSize    float64

	PriceMovement  float64 // fractional price change over the window
	VolumeWeighted float64 // volume-weighted average price

	ToxicityScore float64 // 0 = uninformed flow, 1 = highly informed
	IsToxic       bool
}

// AnomalyKind classifies a detected manipulative trading pattern.
type AnomalyKind string

const (
	AnomalyFrontRun    AnomalyKind = "front_run"
	AnomalySpoofing    AnomalyKind = "spoofing"
	AnomalyWashTrading AnomalyKind = "wash_trading"
	AnomalyLayering    AnomalyKind = "layering"
)

// AnomalyAction is the recommended response to an anomaly.
type AnomalyAction string

const (
	AnomalyActionAvoid    AnomalyAction = "avoid"
	AnomalyActionDelay    AnomalyAction = "delay"
	AnomalyActionUseLimit AnomalyAction = "use_limit"
	AnomalyActionCancel   AnomalyAction = "cancel"
)

// TradingAnomaly is a detected manipulative or informed-flow pattern.
// Severity is clamped to [0,1].
type TradingAnomaly struct {
	Ticker            string
	Timestamp         time.Time
	Kind              AnomalyKind
	Severity          float64
	Description       string
	RecommendedAction AnomalyAction
}

package domain

import "time"

// InventoryState is the risk assessment of the current net position in one
// market. It is recomputed from open positions on every call; position and
// price both move, so a cached copy is only a hint for observers.
type InventoryState struct {
	Ticker    string
	Timestamp time.Time

	NetPosition   int     // signed contract count, positive = long yes
	PositionValue float64 // |net| * current price
	PositionPct   float64 // fraction of total capital

	InventoryRisk   float64 // 0 = flat, 1 = extreme
	MaxSafePosition int
	NeedsRebalance  bool

	RecommendedSkew  float64 // quote skew in [-0.5, 0.5], negative = lean to sell
	RecommendedWidth float64 // spread-width multiplier applied to base spread
	StopQuoting      bool
}

// QuoteAdjustment is the inventory-aware two-sided quote the market-making
// layer should post.
type QuoteAdjustment struct {
	BidPrice  float64
	AskPrice  float64
	BidSize   int
	AskSize   int
	Reasoning string
}

// LiquidationUrgency ranks how quickly excess inventory must be unwound.
type LiquidationUrgency string

const (
	LiquidationNone   LiquidationUrgency = "none"
	LiquidationLow    LiquidationUrgency = "low"
	LiquidationMedium LiquidationUrgency = "medium"
	LiquidationHigh   LiquidationUrgency = "high"
)

// LiquidationMethod is how the unwind should be executed.
type LiquidationMethod string

const (
	LiquidationMethodNone    LiquidationMethod = "none"
	LiquidationMethodMarket  LiquidationMethod = "market_order"
	LiquidationMethodLimit   LiquidationMethod = "limit_order"
	LiquidationMethodPassive LiquidationMethod = "passive_quote"
)

// LiquidationPlan describes how to reduce an oversized position.
type LiquidationPlan struct {
	NeedsLiquidation bool
	QuantityToClose  int
	Action           Action // sell when long, buy when short
	Method           LiquidationMethod
	Urgency          LiquidationUrgency
	CurrentPosition  int
	MaxSafePosition  int
	Reasoning        string
}

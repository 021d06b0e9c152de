package domain

import "time"

// Urgency controls how aggressively an intent is executed.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// ExecMethod is the chosen execution strategy for an order.
type ExecMethod string

const (
	ExecMarket     ExecMethod = "market"
	ExecLimit      ExecMethod = "limit"
	ExecSmartLimit ExecMethod = "smart_limit"
	ExecIceberg    ExecMethod = "iceberg"
	ExecTWAP       ExecMethod = "twap"
	ExecCancel     ExecMethod = "cancel"
)

// OrderIntent is an already-decided trade the strategy layer wants executed:
// what to trade and how badly, but not how to place it.
type OrderIntent struct {
	Ticker      string
	Side        Side
	Action      Action
	Quantity    int
	TargetPrice float64 // 0 means "no target, use market mid"
	Urgency     Urgency
}

// MarketImpactEstimate models the expected cost of pushing an order through
// the currently visible book. Derived per decision, never cached.
type MarketImpactEstimate struct {
	Ticker   string
	Quantity int
	Side     Side
	Action   Action

	ExpectedFillPrice float64
	Slippage          float64 // absolute distance from mid
	SlippagePct       float64
	PriceImpact       float64 // slippage as a fraction of mid

	RecommendedMethod ExecMethod
	ChunkCount        int
	Reasoning         string
}

// ExecutionDecision is the orchestrator's go/no-go plan for one intent.
// Value object: assembled once, never mutated.
type ExecutionDecision struct {
	ShouldExecute bool
	Method        ExecMethod

	LimitPrice        float64 // 0 when not a limit-style order
	ExpectedFillPrice float64
	ExpectedSlippage  float64

	OrderSize         int
	ChunkCount        int
	ChunkSize         int
	DelayBetweenChunk time.Duration

	SafetyScore    float64
	Warnings       []string
	Reasoning      string
	Urgency        Urgency
	MaxSlippagePct float64
}

// ExecutionResult reports what actually happened when a decision was carried
// out against the exchange.
type ExecutionResult struct {
	Success          bool
	FilledQuantity   int
	AverageFillPrice float64
	TotalCost        float64
	Slippage         float64
	ExecutionTime    time.Duration
	MethodUsed       ExecMethod
	Warnings         []string
	Details          string
}

// ExecutionStats are process-lifetime orchestrator counters.
type ExecutionStats struct {
	TotalOrders        int64
	SuccessfulOrders   int64
	SuccessRate        float64
	AvoidedToxicTrades int64
	TotalSlippageSaved float64
	AvgSlippageSaved   float64
}

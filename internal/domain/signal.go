package domain

import "time"

// SourceLiquidation marks signals that unwind risk rather than add it. They
// bypass the safe-mode suppression gate.
const SourceLiquidation = "liquidation"

// TradeSignal is emitted by a strategy to request execution of an intent.
type TradeSignal struct {
	ID          string // UUID for dedup
	Source      string // strategy name or "liquidation"
	Ticker      string
	Side        Side
	Action      Action
	Quantity    int
	TargetPrice float64
	Urgency     Urgency
	Reason      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Intent converts the signal into the orchestrator's input form.
func (s TradeSignal) Intent() OrderIntent {
	return OrderIntent{
		Ticker:      s.Ticker,
		Side:        s.Side,
		Action:      s.Action,
		Quantity:    s.Quantity,
		TargetPrice: s.TargetPrice,
		Urgency:     s.Urgency,
	}
}

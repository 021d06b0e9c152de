package domain

import "time"

// Trade is a persisted record of executed fills, aggregated per execution.
type Trade struct {
	ID            int64
	Ticker        string
	Side          Side
	Action        Action
	Quantity      int
	AvgPrice      float64
	TotalCost     float64
	Method        ExecMethod
	Slippage      float64
	ClientOrderID string
	Strategy      string
	ExecutedAt    time.Time
}

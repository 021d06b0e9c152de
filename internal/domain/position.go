package domain

import "time"

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position represents an open or historical holding in one market. Quantity
// is always positive; Side carries the direction (yes = long the event).
type Position struct {
	ID         string
	MarketID   string // Kalshi ticker
	Side       Side
	Quantity   int
	EntryPrice float64
	Strategy   string
	Status     PositionStatus
	OpenedAt   time.Time
	ClosedAt   *time.Time
	ExitPrice  *float64
	RealizedPnL float64
}

// SignedQuantity returns the net contract count contribution of this
// position: positive for yes-side holdings, negative for no-side.
func (p Position) SignedQuantity() int {
	if p.Side == SideYes {
		return p.Quantity
	}
	return -p.Quantity
}

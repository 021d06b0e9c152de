package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market represents a Kalshi event-contract market. Prices are probabilities
// in [0,1], normalized from the exchange's integer-cent representation at the
// client boundary.
type Market struct {
	Ticker      string
	EventTicker string
	Title       string
	YesBid      float64
	YesAsk      float64
	NoBid       float64
	NoAsk       float64
	LastPrice   float64
	Volume      int64
	OpenInterest int64
	Status      MarketStatus
	CloseTime   time.Time
	UpdatedAt   time.Time
}

// SidePrice returns the quoted price for the given side and action: buys pay
// the ask, sells receive the bid.
func (m Market) SidePrice(side Side, action Action) float64 {
	if side == SideYes {
		if action == ActionBuy {
			return m.YesAsk
		}
		return m.YesBid
	}
	if action == ActionBuy {
		return m.NoAsk
	}
	return m.NoBid
}

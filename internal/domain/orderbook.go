package domain

import "time"

// PriceLevel is a single price+quantity entry in an order book. Price is a
// probability in [0,1]; Quantity is a contract count.
type PriceLevel struct {
	Price    float64
	Quantity int
}

// OrderBook is the normalized raw book for one market, split by contract
// side. Bids are resting buy orders (best first), asks resting sell orders
// (best first). The exchange client performs all cents-to-probability
// conversion; nothing downstream re-parses wire payloads.
type OrderBook struct {
	Ticker    string
	Yes       BookSide
	No        BookSide
	Timestamp time.Time
}

// BookSide holds one contract side's bids and asks.
type BookSide struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BookSnapshot is a point-in-time microstructure view of one side of a
// market's book. It is immutable once built and never persisted.
type BookSnapshot struct {
	Ticker    string
	Side      Side
	Timestamp time.Time

	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Spread    float64
	SpreadPct float64 // spread as a fraction of mid

	BidDepthTop  int // contracts at best bid
	AskDepthTop  int // contracts at best ask
	BidDepthFive int // contracts across top 5 bid levels
	AskDepthFive int // contracts across top 5 ask levels

	DepthImbalance float64 // (bid5 - ask5) / (bid5 + ask5)
	PricePressure  float64 // imbalance adjusted for spread

	TotalLiquidity int
	LiquidityScore float64 // 0 = empty book, 1 = deep and tight
}

// BookChange is an observed order book delta, used by the spoofing scan.
// Removed is true when the level was pulled rather than added.
type BookChange struct {
	Ticker    string
	Side      Side
	Price     float64
	Quantity  int
	Removed   bool
	Timestamp time.Time
}

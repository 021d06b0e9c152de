package domain

import "time"

// Side is the contract side of a Kalshi order ("yes" or "no").
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Action indicates whether an order buys or sells contracts.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Opposite returns the reverse action.
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is a normalized order submitted through the exchange client.
// Prices are probabilities in [0,1]; the client converts to integer cents on
// the wire.
type OrderRequest struct {
	Ticker        string
	ClientOrderID string
	Side          Side
	Action        Action
	Count         int
	Type          OrderType
	LimitPrice    float64 // limit orders only
	ExpirationTs  int64   // optional unix seconds
}

// OrderAck is the exchange acknowledgement for a submitted order.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
	Status        string
	CreatedAt     time.Time
}

// Fill is a normalized execution report from the exchange. Price is a
// probability in [0,1].
type Fill struct {
	TradeID       string
	OrderID       string
	ClientOrderID string
	Ticker        string
	Side          Side
	Action        Action
	Count         int
	Price         float64
	IsTaker       bool
	CreatedAt     time.Time
}

package kalshi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
//
// All prices on the wire are integer cents (1-99). The DTOs stay inside
// this package; everything crossing into the rest of the program is a
// domain type with prices normalized to [0,1] probabilities.
// --------------------------------------------------------------------------

type marketDTO struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Status       string  `json:"status"` // "open", "closed", "settled"
	YesBid       int64   `json:"yes_bid"`
	YesAsk       int64   `json:"yes_ask"`
	NoBid        int64   `json:"no_bid"`
	NoAsk        int64   `json:"no_ask"`
	LastPrice    int64   `json:"last_price"`
	Volume       int64   `json:"volume"`
	Volume24H    int64   `json:"volume_24h"`
	OpenInterest int64   `json:"open_interest"`
	Category     string  `json:"category"`
	Result       string  `json:"result"`
	FloorStrike  float64 `json:"floor_strike"`
	CapStrike    float64 `json:"cap_strike"`
	OpenTime     string  `json:"open_time"`
	CloseTime    string  `json:"close_time"`
}

// priceLevel is one [price_cents, quantity] pair. Kalshi encodes book
// levels as two-element arrays, worst price first.
type priceLevel struct {
	PriceCents int64
	Quantity   int64
}

func (l *priceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("kalshi: decode price level: %w", err)
	}
	l.PriceCents = pair[0]
	l.Quantity = pair[1]
	return nil
}

// orderbookDTO carries the resting bids for each contract side. Kalshi
// books have no explicit asks: an ask on yes is a bid on no at the
// complementary price.
type orderbookDTO struct {
	Yes []priceLevel `json:"yes"`
	No  []priceLevel `json:"no"`
}

type orderPayload struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`   // "yes" or "no"
	Action        string `json:"action"` // "buy" or "sell"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int    `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
	ExpirationTs  *int64 `json:"expiration_ts,omitempty"`
}

type orderDTO struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
	Side           string `json:"side"`
	Action         string `json:"action"`
	Type           string `json:"type"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int    `json:"remaining_count"`
	TakerFillCount int    `json:"taker_fill_count"`
	CreatedTime    string `json:"created_time"`
}

type fillDTO struct {
	TradeID       string `json:"trade_id"`
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	YesPrice      int64  `json:"yes_price"`
	NoPrice       int64  `json:"no_price"`
	IsTaker       bool   `json:"is_taker"`
	CreatedTime   string `json:"created_time"`
}

type balanceDTO struct {
	Balance int64 `json:"balance"` // cents
	Payout  int64 `json:"payout"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// wsEnvelope wraps every Kalshi WebSocket message.
type wsEnvelope struct {
	Type string          `json:"type"` // "orderbook_snapshot", "orderbook_delta", "trade", ...
	SID  int64           `json:"sid"`
	Seq  int64           `json:"seq"`
	Msg  json.RawMessage `json:"msg"`
}

type wsOrderbookSnapshot struct {
	Ticker string       `json:"market_ticker"`
	Yes    []priceLevel `json:"yes"`
	No     []priceLevel `json:"no"`
}

type wsOrderbookDelta struct {
	Ticker     string `json:"market_ticker"`
	PriceCents int64  `json:"price"`
	Delta      int64  `json:"delta"`
	Side       string `json:"side"`
}

type wsTrade struct {
	Ticker    string `json:"market_ticker"`
	YesPrice  int64  `json:"yes_price"`
	NoPrice   int64  `json:"no_price"`
	Count     int    `json:"count"`
	TakerSide string `json:"taker_side"` // "yes" or "no"
	Ts        int64  `json:"ts"`
}

type wsSubscribeCmd struct {
	ID     int64             `json:"id"`
	Cmd    string            `json:"cmd"` // "subscribe" or "unsubscribe"
	Params wsSubscribeParams `json:"params"`
}

type wsSubscribeParams struct {
	Channels []string `json:"channels"`
	Tickers  []string `json:"market_tickers"`
}

// --------------------------------------------------------------------------
// Normalization
// --------------------------------------------------------------------------

func centsToProb(cents int64) float64 {
	return float64(cents) / 100
}

func probToCents(p float64) int64 {
	cents := int64(p*100 + 0.5)
	if cents < 1 {
		cents = 1
	}
	if cents > 99 {
		cents = 99
	}
	return cents
}

func (m marketDTO) toDomain() domain.Market {
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)
	return domain.Market{
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		Title:        m.Title,
		YesBid:       centsToProb(m.YesBid),
		YesAsk:       centsToProb(m.YesAsk),
		NoBid:        centsToProb(m.NoBid),
		NoAsk:        centsToProb(m.NoAsk),
		LastPrice:    centsToProb(m.LastPrice),
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		Status:       domain.MarketStatus(m.Status),
		CloseTime:    closeTime,
		UpdatedAt:    time.Now().UTC(),
	}
}

// toDomain builds a full two-sided book. Bids come straight from the wire;
// asks on each side are mirrored from the other side's bids at the
// complementary price.
func (b orderbookDTO) toDomain(ticker string) domain.OrderBook {
	return domain.OrderBook{
		Ticker:    ticker,
		Yes:       domain.BookSide{Bids: bidsToDomain(b.Yes), Asks: asksFromOpposite(b.No)},
		No:        domain.BookSide{Bids: bidsToDomain(b.No), Asks: asksFromOpposite(b.Yes)},
		Timestamp: time.Now().UTC(),
	}
}

// bidsToDomain orders wire bids best (highest) first.
func bidsToDomain(levels []priceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, domain.PriceLevel{
			Price:    centsToProb(levels[i].PriceCents),
			Quantity: int(levels[i].Quantity),
		})
	}
	return out
}

// asksFromOpposite converts the opposite side's bids into implied asks,
// best (lowest) first. A bid of q contracts at c cents on no is an offer
// of q yes contracts at 100-c.
func asksFromOpposite(levels []priceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, domain.PriceLevel{
			Price:    centsToProb(100 - levels[i].PriceCents),
			Quantity: int(levels[i].Quantity),
		})
	}
	return out
}

func (f fillDTO) toDomain() domain.Fill {
	price := centsToProb(f.YesPrice)
	if f.Side == "no" {
		price = centsToProb(f.NoPrice)
	}
	createdAt, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return domain.Fill{
		TradeID:       f.TradeID,
		OrderID:       f.OrderID,
		ClientOrderID: f.ClientOrderID,
		Ticker:        f.Ticker,
		Side:          domain.Side(f.Side),
		Action:        domain.Action(f.Action),
		Count:         f.Count,
		Price:         price,
		IsTaker:       f.IsTaker,
		CreatedAt:     createdAt,
	}
}

package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest mid prices per ticker.
type PriceCache interface {
	SetPrice(ctx context.Context, ticker string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, ticker string) (float64, time.Time, error)
	GetPrices(ctx context.Context, tickers []string) (map[string]float64, error)
}

// OrderbookCache stores the latest normalized book per ticker so observers
// (dashboard, quote layer) can read without hitting the exchange.
type OrderbookCache interface {
	SetBook(ctx context.Context, book OrderBook) error
	GetBook(ctx context.Context, ticker string) (OrderBook, error)
	GetBBO(ctx context.Context, ticker string, side Side) (bestBid, bestAsk float64, err error)
}

// RateLimiter bounds outbound request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed mutual exclusion, used to keep a single
// trading loop per deployment. Acquire returns ErrLockHeld when another
// holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

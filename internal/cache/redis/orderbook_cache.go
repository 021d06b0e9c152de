package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// bookTTL bounds staleness: a book that has not been refreshed within this
// window disappears rather than serving dead quotes.
const bookTTL = 2 * time.Minute

// OrderbookCache implements domain.OrderbookCache. The normalized book is
// stored whole as JSON at "book:{ticker}"; it is small (a few levels per
// side) and always replaced atomically by the next snapshot.
type OrderbookCache struct {
	rdb *redis.Client
}

func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func bookKey(ticker string) string {
	return "book:" + ticker
}

// SetBook replaces the cached book for the ticker.
func (oc *OrderbookCache) SetBook(ctx context.Context, book domain.OrderBook) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", book.Ticker, err)
	}
	if err := oc.rdb.Set(ctx, bookKey(book.Ticker), data, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", book.Ticker, err)
	}
	return nil
}

// GetBook returns the latest cached book. It returns domain.ErrNoBookData
// when no fresh book exists for the ticker.
func (oc *OrderbookCache) GetBook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	data, err := oc.rdb.Get(ctx, bookKey(ticker)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.OrderBook{}, domain.ErrNoBookData
		}
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s: %w", ticker, err)
	}

	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: unmarshal book %s: %w", ticker, err)
	}
	return book, nil
}

// GetBBO returns the best bid and ask for one contract side of the cached
// book. Zero is returned for a side with no resting orders.
func (oc *OrderbookCache) GetBBO(ctx context.Context, ticker string, side domain.Side) (float64, float64, error) {
	book, err := oc.GetBook(ctx, ticker)
	if err != nil {
		return 0, 0, err
	}

	levels := book.Yes
	if side == domain.SideNo {
		levels = book.No
	}

	var bestBid, bestAsk float64
	if len(levels.Bids) > 0 {
		bestBid = levels.Bids[0].Price
	}
	if len(levels.Asks) > 0 {
		bestAsk = levels.Asks[0].Price
	}
	return bestBid, bestAsk, nil
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)

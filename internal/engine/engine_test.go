package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExchange is a scripted Exchange double. Fills are returned verbatim
// but stamped with the most recent client order id so collectFills can
// attribute them, mirroring how the real client echoes the id back.
type fakeExchange struct {
	mu sync.Mutex

	book    domain.OrderBook
	bookErr error

	market    domain.Market
	marketErr error

	placeErr     error
	limitErr     error // overrides placeErr for limit orders only
	placedOrders []domain.OrderRequest

	fills    []domain.Fill
	fillsErr error
}

func (f *fakeExchange) GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return domain.OrderBook{}, f.bookErr
	}
	return f.book, nil
}

func (f *fakeExchange) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketErr != nil {
		return domain.Market{}, f.marketErr
	}
	return f.market, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Type == domain.OrderTypeLimit && f.limitErr != nil {
		return domain.OrderAck{}, f.limitErr
	}
	if f.placeErr != nil {
		return domain.OrderAck{}, f.placeErr
	}
	f.placedOrders = append(f.placedOrders, req)
	return domain.OrderAck{OrderID: "ord-1", ClientOrderID: req.ClientOrderID, Status: "resting"}, nil
}

func (f *fakeExchange) GetFills(ctx context.Context, ticker string, limit int) ([]domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fillsErr != nil {
		return nil, f.fillsErr
	}
	if len(f.placedOrders) == 0 {
		return nil, nil
	}
	last := f.placedOrders[len(f.placedOrders)-1]
	out := make([]domain.Fill, len(f.fills))
	for i, fill := range f.fills {
		fill.ClientOrderID = last.ClientOrderID
		fill.Ticker = ticker
		out[i] = fill
	}
	return out, nil
}

func (f *fakeExchange) placed() []domain.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderRequest(nil), f.placedOrders...)
}

// fakePositionStore serves a fixed set of open positions.
type fakePositionStore struct {
	open    []domain.Position
	openErr error
}

func (f *fakePositionStore) Create(ctx context.Context, pos domain.Position) error { return nil }
func (f *fakePositionStore) Update(ctx context.Context, pos domain.Position) error { return nil }
func (f *fakePositionStore) Close(ctx context.Context, id string, exitPrice float64) error {
	return nil
}
func (f *fakePositionStore) GetOpen(ctx context.Context) ([]domain.Position, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.open, nil
}
func (f *fakePositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}
func (f *fakePositionStore) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

// balancedBook builds a healthy two-sided yes book around 0.50.
func balancedBook(ticker string) domain.OrderBook {
	levels := func(start, step float64) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 5)
		for i := range out {
			out[i] = domain.PriceLevel{Price: start + float64(i)*step, Quantity: 60}
		}
		return out
	}
	return domain.OrderBook{
		Ticker: ticker,
		Yes: domain.BookSide{
			Bids: levels(0.49, -0.01),
			Asks: levels(0.50, 0.01),
		},
		No: domain.BookSide{
			Bids: levels(0.49, -0.01),
			Asks: levels(0.50, 0.01),
		},
		Timestamp: time.Now().UTC(),
	}
}

func newTestOrchestrator(ex *fakeExchange, store domain.PositionStore) *Orchestrator {
	o := NewOrchestrator(ex, store, DefaultParams(), testLogger())
	o.sleep = func(ctx context.Context, d time.Duration) {}
	return o
}

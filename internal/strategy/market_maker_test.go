package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mmExchange struct {
	book    domain.OrderBook
	bookErr error
}

func (m *mmExchange) GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	if m.bookErr != nil {
		return domain.OrderBook{}, m.bookErr
	}
	return m.book, nil
}

func (m *mmExchange) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	return domain.Market{Ticker: ticker}, nil
}

func (m *mmExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	return domain.OrderAck{}, nil
}

func (m *mmExchange) GetFills(ctx context.Context, ticker string, limit int) ([]domain.Fill, error) {
	return nil, nil
}

type mmPositions struct {
	open    []domain.Position
	openErr error
}

func (m *mmPositions) Create(ctx context.Context, pos domain.Position) error { return nil }
func (m *mmPositions) Update(ctx context.Context, pos domain.Position) error { return nil }
func (m *mmPositions) Close(ctx context.Context, id string, exitPrice float64) error {
	return nil
}
func (m *mmPositions) GetOpen(ctx context.Context) ([]domain.Position, error) {
	return m.open, m.openErr
}
func (m *mmPositions) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}
func (m *mmPositions) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

type mmCapital struct {
	total float64
	err   error
}

func (m *mmCapital) TotalCapital(ctx context.Context) (float64, error) {
	return m.total, m.err
}

// healthyBook mirrors a deep two-sided book around 0.50: five levels of 60
// contracts per side, best bid 0.49, best ask 0.50.
func healthyBook(ticker string) domain.OrderBook {
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
			Bids: levels(0.50, -0.01),
			Asks: levels(0.51, 0.01),
		},
		Timestamp: time.Now(),
	}
}

func newMakerUnderTest(ex *mmExchange, pos *mmPositions, capital float64, cfg Config) *MarketMaker {
	orch := engine.NewOrchestrator(ex, pos, engine.DefaultParams(), testLogger())
	return NewMarketMaker(orch, &mmCapital{total: capital}, cfg, testLogger())
}

func TestMarketMakerQuotesBothSidesWhenFlat(t *testing.T) {
	ex := &mmExchange{book: healthyBook("FLAT-MKT")}
	mm := newMakerUnderTest(ex, &mmPositions{}, 10_000, Config{QuoteSize: 10})

	signals, err := mm.Evaluate(context.Background(), "FLAT-MKT")
	require.NoError(t, err)
	require.Len(t, signals, 2)

	buy, sell := signals[0], signals[1]
	assert.Equal(t, domain.ActionBuy, buy.Action)
	assert.Equal(t, domain.ActionSell, sell.Action)
	for _, sig := range signals {
		assert.Equal(t, "market_maker", sig.Source)
		assert.Equal(t, "FLAT-MKT", sig.Ticker)
		assert.Equal(t, domain.SideYes, sig.Side)
		assert.Equal(t, 10, sig.Quantity)
		assert.Equal(t, domain.UrgencyLow, sig.Urgency)
		assert.NotEmpty(t, sig.ID)
		assert.True(t, sig.ExpiresAt.After(sig.CreatedAt))
	}
	assert.Less(t, buy.TargetPrice, sell.TargetPrice)
}

func TestMarketMakerSkipsUnhealthyBook(t *testing.T) {
	wide := domain.OrderBook{
		Ticker: "WIDE-MKT",
		Yes: domain.BookSide{
			Bids: []domain.PriceLevel{{Price: 0.40, Quantity: 60}},
			Asks: []domain.PriceLevel{{Price: 0.60, Quantity: 60}},
		},
		Timestamp: time.Now(),
	}
	ex := &mmExchange{book: wide}
	mm := newMakerUnderTest(ex, &mmPositions{}, 10_000, Config{QuoteSize: 10})

	signals, err := mm.Evaluate(context.Background(), "WIDE-MKT")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMarketMakerPropagatesBookError(t *testing.T) {
	ex := &mmExchange{bookErr: errors.New("exchange down")}
	mm := newMakerUnderTest(ex, &mmPositions{}, 10_000, Config{QuoteSize: 10})

	_, err := mm.Evaluate(context.Background(), "ERR-MKT")
	require.Error(t, err)
}

func TestMarketMakerPropagatesCapitalError(t *testing.T) {
	ex := &mmExchange{book: healthyBook("CAP-MKT")}
	orch := engine.NewOrchestrator(ex, &mmPositions{}, engine.DefaultParams(), testLogger())
	mm := NewMarketMaker(orch, &mmCapital{err: errors.New("balance unavailable")}, Config{QuoteSize: 10}, testLogger())

	_, err := mm.Evaluate(context.Background(), "CAP-MKT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capital")
}

func TestMarketMakerShrinksBidWhenLong(t *testing.T) {
	pos := &mmPositions{open: []domain.Position{{
		ID:       "p1",
		MarketID: "LONG-MKT",
		Side:     domain.SideYes,
		Quantity: 100,
	}}}
	ex := &mmExchange{book: healthyBook("LONG-MKT")}
	mm := newMakerUnderTest(ex, pos, 10_000, Config{QuoteSize: 10})

	signals, err := mm.Evaluate(context.Background(), "LONG-MKT")
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Less(t, signals[0].Quantity, signals[1].Quantity)
	assert.Contains(t, signals[0].Reason, "skewing to sell")
}

func TestMarketMakerStopsQuotingAtHighRisk(t *testing.T) {
	// 295 contracts keeps the position under the hard cap but pushes
	// inventory risk past the stop-quoting bound without forcing liquidation.
	pos := &mmPositions{open: []domain.Position{{
		ID:       "p1",
		MarketID: "RISK-MKT",
		Side:     domain.SideYes,
		Quantity: 295,
	}}}
	ex := &mmExchange{book: healthyBook("RISK-MKT")}
	mm := newMakerUnderTest(ex, pos, 10_000, Config{QuoteSize: 10})

	signals, err := mm.Evaluate(context.Background(), "RISK-MKT")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMarketMakerEmitsLiquidationOverCap(t *testing.T) {
	// 60 contracts against 100 capital at mid 0.495 exceeds the max safe
	// position of 40, so a forced unwind of the 20-contract excess fires.
	pos := &mmPositions{open: []domain.Position{{
		ID:       "p1",
		MarketID: "OVER-MKT",
		Side:     domain.SideYes,
		Quantity: 60,
	}}}
	ex := &mmExchange{book: healthyBook("OVER-MKT")}
	mm := newMakerUnderTest(ex, pos, 100, Config{QuoteSize: 10})

	signals, err := mm.Evaluate(context.Background(), "OVER-MKT")
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, "liquidation", sig.Source)
	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.Equal(t, 20, sig.Quantity)
	assert.Equal(t, domain.UrgencyUrgent, sig.Urgency)
}

func TestMarketMakerRespectsMinEdge(t *testing.T) {
	ex := &mmExchange{book: healthyBook("EDGE-MKT")}
	mm := newMakerUnderTest(ex, &mmPositions{}, 10_000, Config{
		QuoteSize: 10,
		MinEdge:   0.01,
	})

	signals, err := mm.Evaluate(context.Background(), "EDGE-MKT")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMarketMakerRebateUnlocksQuoting(t *testing.T) {
	ex := &mmExchange{book: healthyBook("REBATE-MKT")}
	mm := newMakerUnderTest(ex, &mmPositions{}, 10_000, Config{
		QuoteSize:    10,
		MinEdge:      0.01,
		RebatePerLot: 0.025,
	})

	signals, err := mm.Evaluate(context.Background(), "REBATE-MKT")
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}

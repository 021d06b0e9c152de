package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
)

type stubExchange struct {
	mu      sync.Mutex
	book    domain.OrderBook
	bookErr error
	orders  []domain.OrderRequest
}

func (s *stubExchange) GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	if s.bookErr != nil {
		return domain.OrderBook{}, s.bookErr
	}
	return s.book, nil
}

func (s *stubExchange) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	return domain.Market{Ticker: ticker, YesBid: 0.49, YesAsk: 0.51}, nil
}

func (s *stubExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, req)
	return domain.OrderAck{OrderID: "ord", ClientOrderID: req.ClientOrderID}, nil
}

func (s *stubExchange) GetFills(ctx context.Context, ticker string, limit int) ([]domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.orders) == 0 {
		return nil, nil
	}
	last := s.orders[len(s.orders)-1]
	return []domain.Fill{{
		ClientOrderID: last.ClientOrderID,
		Ticker:        ticker,
		Count:         last.Count,
		Price:         0.50,
	}}, nil
}

type stubPositions struct{}

func (stubPositions) Create(ctx context.Context, pos domain.Position) error          { return nil }
func (stubPositions) Update(ctx context.Context, pos domain.Position) error          { return nil }
func (stubPositions) Close(ctx context.Context, id string, exitPrice float64) error  { return nil }
func (stubPositions) GetOpen(ctx context.Context) ([]domain.Position, error)         { return nil, nil }
func (stubPositions) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}
func (stubPositions) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

type stubCapital struct {
	amount float64
	err    error
}

func (s stubCapital) TotalCapital(ctx context.Context) (float64, error) {
	return s.amount, s.err
}

type captureRecorder struct {
	mu         sync.Mutex
	decisions  []domain.ExecutionDecision
	executions []domain.ExecutionResult
}

func (r *captureRecorder) RecordDecision(ctx context.Context, sig domain.TradeSignal, d domain.ExecutionDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

func (r *captureRecorder) RecordExecution(ctx context.Context, sig domain.TradeSignal, d domain.ExecutionDecision, res domain.ExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, res)
	return nil
}

type captureAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *captureAlerter) Alert(ctx context.Context, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, title+": "+message)
	return nil
}

func healthyBook(ticker string) domain.OrderBook {
	levels := func(start, step float64) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 5)
		for i := range out {
			out[i] = domain.PriceLevel{Price: start + float64(i)*step, Quantity: 60}
		}
		return out
	}
	return domain.OrderBook{
		Ticker:    ticker,
		Yes:       domain.BookSide{Bids: levels(0.49, -0.01), Asks: levels(0.50, 0.01)},
		Timestamp: time.Now().UTC(),
	}
}

func newTestExecutor(ex *stubExchange, capital CapitalSource, rec Recorder, alerter Alerter) (*Executor, chan domain.TradeSignal) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.NewOrchestrator(ex, stubPositions{}, engine.DefaultParams(), logger)
	ch := make(chan domain.TradeSignal, 10)
	return NewExecutor(ch, eng, capital, rec, alerter, logger), ch
}

func testSignal(id string) domain.TradeSignal {
	return domain.TradeSignal{
		ID:       id,
		Source:   "test",
		Ticker:   "TICK",
		Side:     domain.SideYes,
		Action:   domain.ActionBuy,
		Quantity: 10,
		Urgency:  domain.UrgencyUrgent,
	}
}

func TestProcessExecutesAndRecords(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	e.process(context.Background(), testSignal("sig-1"))

	require.Len(t, rec.decisions, 1)
	assert.True(t, rec.decisions[0].ShouldExecute)
	require.Len(t, rec.executions, 1)
	assert.True(t, rec.executions[0].Success)
	assert.NotEmpty(t, ex.orders)
}

func TestProcessDeduplicatesSignals(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	e.process(context.Background(), testSignal("sig-1"))
	e.process(context.Background(), testSignal("sig-1"))

	assert.Len(t, rec.decisions, 1)
}

func TestProcessSkipsExpiredSignals(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	sig := testSignal("sig-1")
	sig.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	e.process(context.Background(), sig)

	assert.Empty(t, rec.decisions)
	assert.Empty(t, ex.orders)
}

func TestProcessSkipsOnCapitalError(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{err: errors.New("balance unavailable")}, rec, nil)

	e.process(context.Background(), testSignal("sig-1"))

	assert.Empty(t, rec.decisions)
	assert.Empty(t, ex.orders)
}

func TestProcessRecordsRejectedDecision(t *testing.T) {
	ex := &stubExchange{bookErr: errors.New("down")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	e.process(context.Background(), testSignal("sig-1"))

	require.Len(t, rec.decisions, 1)
	assert.False(t, rec.decisions[0].ShouldExecute)
	assert.Empty(t, rec.executions)
	assert.Empty(t, ex.orders)
}

func TestSafeModeSuppressesNonLiquidationSignals(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)
	e.SetSafeMode(true)

	e.process(context.Background(), testSignal("sig-1"))

	assert.Empty(t, rec.decisions)
	assert.Empty(t, ex.orders)
}

func TestSafeModePassesLiquidationSignals(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)
	e.SetSafeMode(true)

	sig := testSignal("sig-1")
	sig.Source = domain.SourceLiquidation
	e.process(context.Background(), sig)

	require.Len(t, rec.decisions, 1)
	assert.NotEmpty(t, ex.orders)
}

func TestLiquidationExecutionAlerts(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	alerter := &captureAlerter{}
	e, _ := newTestExecutor(ex, stubCapital{amount: 10_000}, &captureRecorder{}, alerter)

	sig := testSignal("sig-1")
	sig.Source = domain.SourceLiquidation
	e.process(context.Background(), sig)

	require.Len(t, alerter.alerts, 1)
	assert.Contains(t, alerter.alerts[0], "forced liquidation executed")
}

func TestRunStopsOnChannelClose(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, ch := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	ch <- testSignal("sig-1")
	close(ch)

	err := e.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, rec.decisions, 1)
}

func TestRunDrainsOnCancel(t *testing.T) {
	ex := &stubExchange{book: healthyBook("TICK")}
	rec := &captureRecorder{}
	e, ch := newTestExecutor(ex, stubCapital{amount: 10_000}, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch <- testSignal("sig-1")

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.decisions, 1)
}

func TestDedupWindow(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))

	time.Sleep(60 * time.Millisecond)
	d.Cleanup()
	assert.False(t, d.Seen("a"))
}

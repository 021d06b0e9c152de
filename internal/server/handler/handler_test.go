package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPositions struct {
	open    []service.PositionView
	history []domain.Position
	err     error
}

func (s *stubPositions) Open(ctx context.Context) ([]service.PositionView, error) {
	return s.open, s.err
}

func (s *stubPositions) History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return s.history, s.err
}

type stubActivity struct {
	trades    []domain.Trade
	decisions []domain.DecisionRecord
	err       error

	gotTicker string
	gotLimit  int
}

func (s *stubActivity) History(ctx context.Context, ticker string, limit int) ([]domain.Trade, error) {
	s.gotTicker = ticker
	s.gotLimit = limit
	return s.trades, s.err
}

func (s *stubActivity) RecentDecisions(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	s.gotLimit = limit
	return s.decisions, s.err
}

type stubSignals struct {
	sigs []domain.TradeSignal
}

func (s *stubSignals) RecentSignals(limit int) []domain.TradeSignal {
	if limit < len(s.sigs) {
		return s.sigs[:limit]
	}
	return s.sigs
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListOpenPositions(t *testing.T) {
	src := &stubPositions{
		open: []service.PositionView{
			{
				Position: domain.Position{
					ID:         "p1",
					MarketID:   "INXD-26SEP01",
					Side:       domain.SideYes,
					Quantity:   10,
					EntryPrice: 0.40,
				},
				CurrentPrice:  0.45,
				UnrealizedPnL: 0.5,
			},
		},
	}
	h := NewPositionHandler(src, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpen(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body listPositionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "p1", body.Positions[0].ID)
	assert.InDelta(t, 0.5, body.Positions[0].UnrealizedPnL, 1e-9)
}

func TestListOpenPositionsEmptyAndError(t *testing.T) {
	h := NewPositionHandler(&stubPositions{}, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpen(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[]}`, rec.Body.String())

	h = NewPositionHandler(&stubPositions{err: errors.New("db down")}, testLogger())
	rec = httptest.NewRecorder()
	h.ListOpen(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTradesRequiresTicker(t *testing.T) {
	h := NewActivityHandler(&stubActivity{}, testLogger())

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTradesPassesTickerAndLimit(t *testing.T) {
	src := &stubActivity{
		trades: []domain.Trade{{ID: 1, Ticker: "INXD-26SEP01", Quantity: 5}},
	}
	h := NewActivityHandler(src, testLogger())

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?ticker=INXD-26SEP01&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INXD-26SEP01", src.gotTicker)
	assert.Equal(t, 10, src.gotLimit)

	var body listTradesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trades, 1)
	assert.Equal(t, int64(1), body.Trades[0].ID)
}

func TestListDecisionsCapsLimit(t *testing.T) {
	src := &stubActivity{}
	h := NewActivityHandler(src, testLogger())

	rec := httptest.NewRecorder()
	h.ListDecisions(rec, httptest.NewRequest(http.MethodGet, "/api/decisions?limit=9999", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, src.gotLimit)
}

func TestStatsUnavailableWithoutEngine(t *testing.T) {
	h := NewStatsHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListSignals(t *testing.T) {
	sigs := &stubSignals{
		sigs: []domain.TradeSignal{
			{ID: "a", Ticker: "INXD-26SEP01"},
			{ID: "b", Ticker: "KXBTC-26SEP01"},
		},
	}
	h := NewStatsHandler(nil, sigs)

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body listSignalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Signals, 1)
	assert.Equal(t, "a", body.Signals[0].ID)
}

func TestStatusReportsStrategies(t *testing.T) {
	h := NewStatusHandler("trade", true, stubLister{"market_maker"})

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"trade","safe_mode":true,"strategies":["market_maker"]}`, rec.Body.String())
}

type stubLister []string

func (s stubLister) Names() []string { return s }

func TestParseListOptsSinceUntil(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/positions/history?limit=20&offset=5&since=2026-08-01T00:00:00Z&until=2026-08-31T00:00:00Z", nil)

	opts := parseListOpts(r)

	assert.Equal(t, 20, opts.Limit)
	assert.Equal(t, 5, opts.Offset)
	require.NotNil(t, opts.Since)
	require.NotNil(t, opts.Until)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), opts.Since.UTC())
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), opts.Until.UTC())
}

package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

type memWriter struct {
	puts map[string][]byte
}

func (m *memWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if m.puts == nil {
		m.puts = map[string][]byte{}
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.puts[path] = b
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return m.Put(ctx, path, data, "")
}

type stubTradeSource struct {
	trades []domain.Trade
}

func (s *stubTradeSource) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	return s.trades, nil
}

type stubDecisionSource struct {
	records []domain.DecisionRecord
}

func (s *stubDecisionSource) ListRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	return s.records, nil
}

func TestArchiveTradesWritesJSONL(t *testing.T) {
	w := &memWriter{}
	trades := &stubTradeSource{trades: []domain.Trade{
		{ID: 1, Ticker: "T1", Action: domain.ActionBuy, Quantity: 10, AvgPrice: 0.55},
		{ID: 2, Ticker: "T2", Action: domain.ActionSell, Quantity: 5, AvgPrice: 0.40},
	}}
	a := NewArchiver(w, trades, &stubDecisionSource{})

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	data, ok := w.puts["archive/trades/2026-07.jsonl"]
	require.True(t, ok, "expected object at month-keyed path, got %v", w.puts)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines int
	for scanner.Scan() {
		var trade domain.Trade
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &trade))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestArchiveTradesEmptyIsNoop(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, &stubTradeSource{}, &stubDecisionSource{})

	n, err := a.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.puts)
}

func TestArchiveDecisionsWritesRecords(t *testing.T) {
	w := &memWriter{}
	decisions := &stubDecisionSource{records: []domain.DecisionRecord{
		{ID: 1, Ticker: "T1", Decision: domain.ExecutionDecision{ShouldExecute: true}},
	}}
	a := NewArchiver(w, &stubTradeSource{}, decisions)

	n, err := a.ArchiveDecisions(context.Background(), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Len(t, w.puts, 1)
}

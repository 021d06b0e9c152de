package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

type stubStrategy struct {
	name    string
	signals []domain.TradeSignal
	evalErr error

	inits  atomic.Int64
	evals  atomic.Int64
	closes atomic.Int64
}

func (s *stubStrategy) Name() string                       { return s.name }
func (s *stubStrategy) Init(ctx context.Context) error     { s.inits.Add(1); return nil }
func (s *stubStrategy) Close() error                       { s.closes.Add(1); return nil }
func (s *stubStrategy) Evaluate(ctx context.Context, ticker string) ([]domain.TradeSignal, error) {
	s.evals.Add(1)
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	out := make([]domain.TradeSignal, len(s.signals))
	copy(out, s.signals)
	for i := range out {
		out[i].Ticker = ticker
	}
	return out, nil
}

func TestRunnerRejectsDuplicateRegistration(t *testing.T) {
	r := NewRunner(make(chan domain.TradeSignal, 1), []string{"A"}, time.Second, testLogger())
	require.NoError(t, r.Register(&stubStrategy{name: "mm"}))
	err := r.Register(&stubStrategy{name: "mm"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, []string{"mm"}, r.Names())
}

func TestRunnerForwardsSignalsPerTicker(t *testing.T) {
	ch := make(chan domain.TradeSignal, 16)
	r := NewRunner(ch, []string{"A", "B"}, 10*time.Millisecond, testLogger())
	stub := &stubStrategy{
		name:    "mm",
		signals: []domain.TradeSignal{{ID: "s1", Source: "mm", Action: domain.ActionBuy, Quantity: 5}},
	}
	require.NoError(t, r.Register(stub))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var got []domain.TradeSignal
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case sig := <-ch:
			got = append(got, sig)
		case <-timeout:
			t.Fatal("timed out waiting for signals")
		}
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	tickers := map[string]bool{}
	for _, sig := range got {
		tickers[sig.Ticker] = true
		assert.Equal(t, "mm", sig.Source)
	}
	assert.True(t, tickers["A"])
	assert.True(t, tickers["B"])
	assert.EqualValues(t, 1, stub.inits.Load())
	assert.EqualValues(t, 1, stub.closes.Load())
}

func TestRunnerSurvivesEvaluationErrors(t *testing.T) {
	ch := make(chan domain.TradeSignal, 16)
	r := NewRunner(ch, []string{"A"}, 10*time.Millisecond, testLogger())
	bad := &stubStrategy{name: "bad", evalErr: errors.New("boom")}
	good := &stubStrategy{
		name:    "good",
		signals: []domain.TradeSignal{{ID: "s1", Source: "good", Action: domain.ActionSell, Quantity: 3}},
	}
	require.NoError(t, r.Register(bad))
	require.NoError(t, r.Register(good))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case sig := <-ch:
		assert.Equal(t, "good", sig.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, bad.evals.Load(), int64(1))
}

func TestRunnerTracksRecentSignals(t *testing.T) {
	ch := make(chan domain.TradeSignal, 8)
	r := NewRunner(ch, nil, time.Second, testLogger())
	for i := 0; i < 3; i++ {
		r.emit(context.Background(), domain.TradeSignal{ID: string(rune('a' + i))})
		<-ch
	}

	recent := r.RecentSignals(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	all := r.RecentSignals(10)
	assert.Len(t, all, 3)
}

func TestRunnerEmitDropsOnCancelledContext(t *testing.T) {
	ch := make(chan domain.TradeSignal) // unbuffered, nobody reading
	r := NewRunner(ch, nil, time.Second, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.emit(ctx, domain.TradeSignal{ID: "dropped"})
	assert.Empty(t, r.RecentSignals(10))
}

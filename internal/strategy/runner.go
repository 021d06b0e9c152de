package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

const defaultEvalInterval = 5 * time.Second

// Runner drives registered strategies on a fixed evaluation cadence and
// forwards every emitted signal to the channel consumed by the executor
// layer. Strategies never touch the exchange directly.
type Runner struct {
	signalCh chan<- domain.TradeSignal
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	strategies map[string]Strategy
	tickers    []string

	recentSignals []domain.TradeSignal
	recentLimit   int
}

func NewRunner(signalCh chan<- domain.TradeSignal, tickers []string, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = defaultEvalInterval
	}
	return &Runner{
		signalCh:    signalCh,
		interval:    interval,
		logger:      logger.With(slog.String("component", "strategy_runner")),
		strategies:  make(map[string]Strategy),
		tickers:     tickers,
		recentLimit: 500,
	}
}

// Register adds a strategy. Registering the same name twice is an error.
func (r *Runner) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[s.Name()]; ok {
		return fmt.Errorf("strategy: %q already registered", s.Name())
	}
	r.strategies[s.Name()] = s
	return nil
}

// Names returns the registered strategy names.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecentSignals returns up to limit most recent emitted signals, newest first.
func (r *Runner) RecentSignals(limit int) []domain.TradeSignal {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.recentSignals)
	if n < limit {
		limit = n
	}
	out := make([]domain.TradeSignal, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.recentSignals[n-1-i]
	}
	return out
}

// Run initializes every registered strategy and evaluates them on the
// configured interval until ctx is cancelled. Strategies are closed on exit.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	list := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		list = append(list, s)
	}
	r.mu.Unlock()

	for _, s := range list {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("strategy: init %s: %w", s.Name(), err)
		}
	}
	defer func() {
		for _, s := range list {
			if err := s.Close(); err != nil {
				r.logger.Warn("strategy close failed",
					slog.String("strategy", s.Name()),
					slog.String("error", err.Error()))
			}
		}
	}()

	r.logger.Info("strategy runner started",
		slog.Int("strategies", len(list)),
		slog.Int("tickers", len(r.tickers)),
		slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("strategy runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.evaluateAll(ctx, list)
		}
	}
}

// evaluateAll runs every strategy against every ticker concurrently, one
// goroutine per strategy. A failed evaluation is logged and does not stop
// the runner.
func (r *Runner) evaluateAll(ctx context.Context, list []Strategy) {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range list {
		s := s
		g.Go(func() error {
			for _, ticker := range r.tickers {
				signals, err := s.Evaluate(gctx, ticker)
				if err != nil {
					r.logger.Warn("evaluation failed",
						slog.String("strategy", s.Name()),
						slog.String("ticker", ticker),
						slog.String("error", err.Error()))
					continue
				}
				for _, sig := range signals {
					r.emit(gctx, sig)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) emit(ctx context.Context, sig domain.TradeSignal) {
	select {
	case r.signalCh <- sig:
		r.track(sig)
		r.logger.Debug("signal emitted",
			slog.String("strategy", sig.Source),
			slog.String("ticker", sig.Ticker),
			slog.String("action", string(sig.Action)),
			slog.Int("quantity", sig.Quantity))
	case <-ctx.Done():
	}
}

func (r *Runner) track(sig domain.TradeSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentSignals = append(r.recentSignals, sig)
	if len(r.recentSignals) > r.recentLimit {
		r.recentSignals = r.recentSignals[len(r.recentSignals)-r.recentLimit:]
	}
}

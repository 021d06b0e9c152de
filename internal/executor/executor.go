package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
)

// CapitalSource reports the total capital available for risk sizing.
// Implemented by the account service, which caches the exchange balance.
type CapitalSource interface {
	TotalCapital(ctx context.Context) (float64, error)
}

// Recorder persists decisions and completed executions. Implemented by the
// trade service.
type Recorder interface {
	RecordDecision(ctx context.Context, sig domain.TradeSignal, decision domain.ExecutionDecision) error
	RecordExecution(ctx context.Context, sig domain.TradeSignal, decision domain.ExecutionDecision, result domain.ExecutionResult) error
}

// Alerter pushes operator notifications for notable execution events.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// Executor reads trade signals from a channel and runs each surviving
// signal through the engine: deduplication and expiry first, then Decide,
// then Execute. Decisions and results are persisted; failures and avoided
// trades raise operator alerts but never stop the loop.
type Executor struct {
	signalCh <-chan domain.TradeSignal
	engine   *engine.Orchestrator
	capital  CapitalSource
	recorder Recorder
	alerter  Alerter
	dedup    *Dedup
	logger   *slog.Logger

	cleanupInterval time.Duration
	safeMode        bool
}

// NewExecutor creates an executor reading from signalCh.
func NewExecutor(signalCh <-chan domain.TradeSignal, eng *engine.Orchestrator, capital CapitalSource, recorder Recorder, alerter Alerter, logger *slog.Logger) *Executor {
	return &Executor{
		signalCh:        signalCh,
		engine:          eng,
		capital:         capital,
		recorder:        recorder,
		alerter:         alerter,
		dedup:           NewDedup(2 * time.Minute),
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: 30 * time.Second,
	}
}

// SetDedupTTL replaces the dedup window. Must be called before Run.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// SetSafeMode toggles suppression of every signal except liquidations.
// Must be called before Run.
func (e *Executor) SetSafeMode(on bool) {
	e.safeMode = on
}

// Run processes signals until the context is cancelled, then drains any
// signals already buffered in the channel.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanup := time.NewTicker(e.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()

		case sig, ok := <-e.signalCh:
			if !ok {
				return nil
			}
			e.process(ctx, sig)

		case <-cleanup.C:
			e.dedup.Cleanup()
		}
	}
}

// process runs one signal through the full pipeline.
func (e *Executor) process(ctx context.Context, sig domain.TradeSignal) {
	log := e.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("source", sig.Source),
		slog.String("ticker", sig.Ticker),
		slog.String("action", string(sig.Action)),
	)

	if e.dedup.Seen(sig.ID) {
		log.Debug("signal deduplicated, skipping")
		return
	}

	if !sig.ExpiresAt.IsZero() && time.Now().UTC().After(sig.ExpiresAt) {
		log.Warn("signal expired, skipping", slog.Time("expires_at", sig.ExpiresAt))
		return
	}

	if e.safeMode && sig.Source != domain.SourceLiquidation {
		log.Info("safe mode: signal suppressed")
		return
	}

	capital, err := e.capital.TotalCapital(ctx)
	if err != nil {
		log.Error("capital lookup failed, skipping signal", slog.String("error", err.Error()))
		return
	}

	decision := e.engine.Decide(ctx, sig.Intent(), capital)
	if e.recorder != nil {
		if err := e.recorder.RecordDecision(ctx, sig, decision); err != nil {
			log.Warn("decision record failed", slog.String("error", err.Error()))
		}
	}

	if !decision.ShouldExecute {
		log.Info("signal rejected by engine",
			slog.String("reason", decision.Reasoning),
			slog.Float64("safety", decision.SafetyScore),
		)
		if decision.SafetyScore > 0 && decision.SafetyScore < 0.5 {
			e.alert(ctx, "trade avoided",
				sig.Ticker+": "+decision.Reasoning)
		}
		return
	}

	result := e.engine.Execute(ctx, sig.Ticker, sig.Side, sig.Action, decision)

	if e.recorder != nil {
		if err := e.recorder.RecordExecution(ctx, sig, decision, result); err != nil {
			log.Warn("execution record failed", slog.String("error", err.Error()))
		}
	}

	if !result.Success {
		log.Warn("execution failed",
			slog.String("method", string(result.MethodUsed)),
			slog.String("details", result.Details),
		)
		e.alert(ctx, "execution failed", sig.Ticker+": "+result.Details)
		return
	}

	log.Info("execution complete",
		slog.String("method", string(result.MethodUsed)),
		slog.Int("filled", result.FilledQuantity),
		slog.Float64("avg_price", result.AverageFillPrice),
	)

	if sig.Source == domain.SourceLiquidation {
		e.alert(ctx, "forced liquidation executed",
			fmt.Sprintf("%s: %d contracts at %.2f", sig.Ticker, result.FilledQuantity, result.AverageFillPrice))
	}
}

func (e *Executor) alert(ctx context.Context, title, message string) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, title, message); err != nil {
		e.logger.Debug("alert delivery failed", slog.String("error", err.Error()))
	}
}

// drain processes signals already buffered in the channel after context
// cancellation so in-flight signals are not silently dropped. Each drained
// signal gets a short-lived context to avoid hanging shutdown.
func (e *Executor) drain() {
	for {
		select {
		case sig, ok := <-e.signalCh:
			if !ok {
				return
			}
			e.logger.Warn("draining signal after shutdown", slog.String("signal_id", sig.ID))
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.process(drainCtx, sig)
			cancel()
		default:
			return
		}
	}
}

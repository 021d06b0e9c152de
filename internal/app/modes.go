package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/blob/s3"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/executor"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/feed"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/platform/kalshi"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/server"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/server/handler"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/service"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/strategy"
)

const (
	tradeLockKey     = "kalshibot:trade"
	tradeLockTTL     = time.Hour
	archiveInterval  = 24 * time.Hour
	archiveRetention = 30 * 24 * time.Hour
	archiveDecisions = 1000
	signalBuffer     = 32
)

// runtime bundles the services shared between the trading loop and the HTTP
// server.
type runtime struct {
	engine    *engine.Orchestrator
	runner    *strategy.Runner
	account   *service.AccountService
	trades    *service.TradeService
	positions *service.PositionService
	signalCh  chan domain.TradeSignal
}

// buildRuntime constructs the engine and services on top of the wired
// dependencies. The strategy runner is only populated when tickers are
// configured.
func (a *App) buildRuntime(deps *Dependencies) *runtime {
	params := engine.DefaultParams()
	if a.cfg.Engine.WideSpreadPct > 0 {
		params.WideSpreadPct = a.cfg.Engine.WideSpreadPct
	}
	if a.cfg.Engine.MinLiquidity > 0 {
		params.MinLiquidity = a.cfg.Engine.MinLiquidity
	}
	if a.cfg.Engine.MaxMarketImpact > 0 {
		params.MaxMarketImpactPct = a.cfg.Engine.MaxMarketImpact
	}
	if a.cfg.Engine.MaxInventoryPct > 0 {
		params.MaxInventoryPct = a.cfg.Engine.MaxInventoryPct
	}
	if a.cfg.Engine.MinDecisionSafety > 0 {
		params.MinDecisionSafety = a.cfg.Engine.MinDecisionSafety
	}
	if a.cfg.Engine.ToxicFlowLimit > 0 {
		params.ToxicFlowThreshold = a.cfg.Engine.ToxicFlowLimit
	}

	rt := &runtime{
		engine:    engine.NewOrchestrator(deps.Kalshi, deps.Positions, params, a.logger),
		account:   service.NewAccountService(deps.Kalshi, a.cfg.Executor.BalanceTTL.Duration, a.logger),
		trades:    service.NewTradeService(deps.Trades, deps.Decisions, deps.Positions, a.logger),
		positions: service.NewPositionService(deps.Positions, deps.PriceCache, a.logger),
		signalCh:  make(chan domain.TradeSignal, signalBuffer),
	}

	if len(a.cfg.Strategy.Tickers) > 0 {
		rt.runner = strategy.NewRunner(rt.signalCh, a.cfg.Strategy.Tickers, a.cfg.Strategy.EvalInterval.Duration, a.logger)
	}

	return rt
}

// TradeMode runs the full trading loop: market data feed, strategy
// evaluation, and signal execution through the risk engine.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("safe_mode", a.cfg.SafeMode),
	)

	release, err := deps.LockManager.Acquire(ctx, tradeLockKey, tradeLockTTL)
	if err != nil {
		return fmt.Errorf("trade mode: acquire trading lock: %w", err)
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)

	rt := a.buildRuntime(deps)
	a.startTrading(ctx, g, deps, rt)

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps.Archiver)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, rt)
	}

	return g.Wait()
}

// MonitorMode streams market data into the caches and flow detector and
// serves the read API, but never evaluates strategies or places orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	rt := a.buildRuntime(deps)
	rt.runner = nil

	a.startFeed(ctx, g, deps, rt)

	// Monitor mode always serves the API; that is its purpose.
	a.startHTTPServer(ctx, g, deps, rt)

	return g.Wait()
}

// ServerMode serves the read API over the stores without touching the
// exchange.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	rt := &runtime{
		trades:    service.NewTradeService(deps.Trades, deps.Decisions, deps.Positions, a.logger),
		positions: service.NewPositionService(deps.Positions, deps.PriceCache, a.logger),
	}
	a.startHTTPServer(ctx, g, deps, rt)

	return g.Wait()
}

// FullMode is trade mode; it exists as a distinct name so deployments can
// flip between configurations without editing the mode string logic.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.TradeMode(ctx, deps)
}

// startTrading launches the feed, strategy runner, and signal consumer. In
// safe mode signals are logged and dropped instead of executed.
func (a *App) startTrading(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	a.startFeed(ctx, g, deps, rt)

	if rt.runner != nil {
		mm := strategy.NewMarketMaker(rt.engine, rt.account, strategy.Config{
			Tickers:      a.cfg.Strategy.Tickers,
			QuoteSize:    a.cfg.Strategy.QuoteSize,
			BaseSpread:   a.cfg.Strategy.BaseSpread,
			MinEdge:      a.cfg.Strategy.MinEdge,
			FillRate:     a.cfg.Strategy.FillRate,
			RebatePerLot: a.cfg.Strategy.RebatePerLot,
		}, a.logger)
		if err := rt.runner.Register(mm); err != nil {
			a.logger.WarnContext(ctx, "strategy registration failed",
				slog.String("error", err.Error()),
			)
		} else {
			g.Go(func() error {
				return rt.runner.Run(ctx)
			})
		}
	}

	exec := executor.NewExecutor(rt.signalCh, rt.engine, rt.account, rt.trades, deps.Notifier, a.logger)
	if a.cfg.Executor.DedupTTL.Duration > 0 {
		exec.SetDedupTTL(a.cfg.Executor.DedupTTL.Duration)
	}
	if a.cfg.SafeMode {
		// Liquidation signals still execute; everything else is suppressed.
		a.logger.InfoContext(ctx, "safe mode enabled")
		exec.SetSafeMode(true)
	}
	g.Go(func() error {
		return exec.Run(ctx)
	})
}

// startFeed launches the websocket market data feed for the configured
// tickers.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	ws := kalshi.NewWSClient(a.cfg.Kalshi.WsURL)
	marketFeed := feed.NewMarketDataFeed(
		ws,
		rt.engine.Detector(),
		deps.BookCache,
		deps.PriceCache,
		a.cfg.Strategy.Tickers,
		a.logger,
	)
	g.Go(func() error {
		return marketFeed.Run(ctx)
	})
}

// runArchiveLoop periodically uploads aged trades and recent decisions to
// object storage.
func (a *App) runArchiveLoop(ctx context.Context, archiver *s3blob.Archiver) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-archiveRetention)
			n, err := archiver.ArchiveTrades(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "trade archive failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "trades archived",
					slog.Int64("count", n),
					slog.Time("cutoff", cutoff),
				)
			}

			if _, err := archiver.ArchiveDecisions(ctx, archiveDecisions); err != nil {
				a.logger.ErrorContext(ctx, "decision archive failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// startHTTPServer adds the HTTP server and its graceful shutdown to the
// errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	var stats handler.StatsSource
	if rt.engine != nil {
		stats = rt.engine
	}
	var signals handler.SignalSource
	var lister handler.StrategyLister
	if rt.runner != nil {
		signals = rt.runner
		lister = rt.runner
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.cfg.SafeMode, lister),
		Stats:     handler.NewStatsHandler(stats, signals),
		Positions: handler.NewPositionHandler(rt.positions, a.logger),
		Activity:  handler.NewActivityHandler(rt.trades, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}

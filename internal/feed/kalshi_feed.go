package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/engine"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/platform/kalshi"
)

const (
	// spoofScanInterval is how often accumulated book changes are scanned.
	spoofScanInterval = 10 * time.Second

	// changeWindowMax bounds the per-ticker change buffer between scans.
	changeWindowMax = 500
)

// MarketDataFeed streams live Kalshi market data into the engine: trade
// prints into the flow detector's tape, book deltas into the periodic
// spoofing scan, and full snapshots into the orderbook and price caches.
type MarketDataFeed struct {
	ws       *kalshi.WSClient
	detector *engine.AdversarialDetector
	books    domain.OrderbookCache
	prices   domain.PriceCache
	tickers  []string
	logger   *slog.Logger

	mu      sync.Mutex
	changes map[string][]domain.BookChange
}

// NewMarketDataFeed creates a feed for the given tickers.
func NewMarketDataFeed(ws *kalshi.WSClient, detector *engine.AdversarialDetector, books domain.OrderbookCache, prices domain.PriceCache, tickers []string, logger *slog.Logger) *MarketDataFeed {
	return &MarketDataFeed{
		ws:       ws,
		detector: detector,
		books:    books,
		prices:   prices,
		tickers:  tickers,
		logger:   logger.With(slog.String("component", "market_data_feed")),
		changes:  make(map[string][]domain.BookChange),
	}
}

// Run connects, subscribes, and pumps events until ctx is cancelled. The
// spoofing scan runs on its own ticker so a quiet market still gets its
// change window flushed.
func (f *MarketDataFeed) Run(ctx context.Context) error {
	if len(f.tickers) == 0 {
		f.logger.Info("no tickers to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	f.ws.OnTrade(func(ticker string, action domain.Action, price float64, quantity int, ts time.Time) {
		f.detector.RecordTrade(ticker, action, price, quantity, ts)
	})
	f.ws.OnBookChange(f.recordChange)
	f.ws.OnSnapshot(func(book domain.OrderBook) {
		f.storeSnapshot(ctx, book)
	})

	if err := f.ws.Connect(ctx); err != nil {
		return err
	}
	defer f.ws.Close()

	if err := f.ws.Subscribe(ctx, f.tickers); err != nil {
		return err
	}
	f.logger.Info("market data feed started", slog.Int("tickers", len(f.tickers)))
	defer f.logger.Info("market data feed stopped")

	scan := time.NewTicker(spoofScanInterval)
	defer scan.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scan.C:
			f.scanForSpoofing()
		}
	}
}

func (f *MarketDataFeed) recordChange(change domain.BookChange) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := append(f.changes[change.Ticker], change)
	if len(buf) > changeWindowMax {
		buf = buf[len(buf)-changeWindowMax:]
	}
	f.changes[change.Ticker] = buf
}

// scanForSpoofing drains each ticker's change window through the detector.
// Detections land in the detector's anomaly log and depress the safety
// score; the feed only logs them.
func (f *MarketDataFeed) scanForSpoofing() {
	f.mu.Lock()
	windows := f.changes
	f.changes = make(map[string][]domain.BookChange)
	f.mu.Unlock()

	for ticker, changes := range windows {
		if anomaly := f.detector.Spoofing(ticker, changes); anomaly != nil {
			f.logger.Warn("spoofing detected",
				slog.String("ticker", ticker),
				slog.Float64("severity", anomaly.Severity),
				slog.String("description", anomaly.Description),
			)
		}
	}
}

func (f *MarketDataFeed) storeSnapshot(ctx context.Context, book domain.OrderBook) {
	if f.books != nil {
		if err := f.books.SetBook(ctx, book); err != nil {
			f.logger.Debug("book cache write failed",
				slog.String("ticker", book.Ticker),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.prices != nil && len(book.Yes.Bids) > 0 && len(book.Yes.Asks) > 0 {
		mid := (book.Yes.Bids[0].Price + book.Yes.Asks[0].Price) / 2
		if err := f.prices.SetPrice(ctx, book.Ticker, mid, book.Timestamp); err != nil {
			f.logger.Debug("price cache write failed",
				slog.String("ticker", book.Ticker),
				slog.String("error", err.Error()),
			)
		}
	}
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// TradeArchiveSource provides the time-ranged trade query the archiver
// needs; the Postgres trade store satisfies it.
type TradeArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// DecisionArchiveSource provides read access to the decision audit trail.
type DecisionArchiveSource interface {
	ListRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
}

// Archiver serializes old audit records to JSONL and uploads them to object
// storage. Deleting the archived rows from the primary store is a separate,
// explicit step taken after the archive is verified.
type Archiver struct {
	writer    domain.BlobWriter
	trades    TradeArchiveSource
	decisions DecisionArchiveSource
}

func NewArchiver(writer domain.BlobWriter, trades TradeArchiveSource, decisions DecisionArchiveSource) *Archiver {
	return &Archiver{
		writer:    writer,
		trades:    trades,
		decisions: decisions,
	}
}

// ArchiveTrades uploads all trades executed before the cutoff to
// archive/trades/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			return 0, fmt.Errorf("s3blob: encode trade %d: %w", t.ID, err)
		}
	}

	path := fmt.Sprintf("archive/trades/%s.jsonl", before.UTC().Format("2006-01"))
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return 0, err
	}
	return int64(len(trades)), nil
}

// ArchiveDecisions uploads the newest limit decision records to
// archive/decisions/YYYY-MM-DD.jsonl and returns the archived count.
func (a *Archiver) ArchiveDecisions(ctx context.Context, limit int) (int64, error) {
	records, err := a.decisions.ListRecent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: encode decision %d: %w", rec.ID, err)
		}
	}

	path := fmt.Sprintf("archive/decisions/%s.jsonl", time.Now().UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

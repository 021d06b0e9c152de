package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL. Decisions
// and results are stored as JSONB so the audit trail survives field changes
// without migrations.
type DecisionStore struct {
	pool *pgxpool.Pool
}

func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Record persists one decision and optionally its execution result.
func (s *DecisionStore) Record(ctx context.Context, ticker string, decision domain.ExecutionDecision, result *domain.ExecutionResult) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("postgres: marshal decision %s: %w", ticker, err)
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("postgres: marshal result %s: %w", ticker, err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO execution_decisions (ticker, decision, result) VALUES ($1, $2, $3)`,
		ticker, decisionJSON, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: record decision %s: %w", ticker, err)
	}
	return nil
}

// ListRecent returns the newest decision records.
func (s *DecisionStore) ListRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, decision, result, created_at
		 FROM execution_decisions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var decisionJSON []byte
		var resultJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Ticker, &decisionJSON, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		if err := json.Unmarshal(decisionJSON, &rec.Decision); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal decision %d: %w", rec.ID, err)
		}
		if len(resultJSON) > 0 {
			var res domain.ExecutionResult
			if err := json.Unmarshal(resultJSON, &res); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal result %d: %w", rec.ID, err)
			}
			rec.Result = &res
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan decisions: %w", err)
	}
	return records, nil
}

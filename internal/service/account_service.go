// Package service provides the application services that sit between the
// transport/storage layers and the trading loop.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BalanceSource fetches the account's available balance in dollars.
type BalanceSource interface {
	GetBalance(ctx context.Context) (float64, error)
}

// AccountService caches the exchange balance so the trading loop can size
// orders on every signal without a REST round trip each time.
type AccountService struct {
	exchange BalanceSource
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	balance   float64
	fetchedAt time.Time
}

func NewAccountService(exchange BalanceSource, ttl time.Duration, logger *slog.Logger) *AccountService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AccountService{
		exchange: exchange,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "account_service")),
	}
}

// TotalCapital returns the account balance, refreshing from the exchange
// when the cached value has expired. A stale value is served when the
// refresh fails and a previous fetch succeeded.
func (s *AccountService) TotalCapital(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		return s.balance, nil
	}

	balance, err := s.exchange.GetBalance(ctx)
	if err != nil {
		if !s.fetchedAt.IsZero() {
			s.logger.Warn("balance refresh failed, serving cached value",
				slog.Float64("balance", s.balance),
				slog.String("error", err.Error()))
			return s.balance, nil
		}
		return 0, fmt.Errorf("account_service: get balance: %w", err)
	}

	s.balance = balance
	s.fetchedAt = time.Now()
	return balance, nil
}

// Invalidate drops the cached balance so the next read refetches. Called
// after executions that change buying power.
func (s *AccountService) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

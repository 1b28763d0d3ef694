package cache

import (
	"context"
	"time"

	"medstore/backend/internal/domain"
)

// LedgerCache holds rendered daily-ledger summaries keyed by ISO date.
// Every successful purchase write must invalidate the affected day so
// readers never see a stale aggregate.
type LedgerCache interface {
	Get(ctx context.Context, date string) (*domain.DailyLedger, bool, error)
	Set(ctx context.Context, date string, value *domain.DailyLedger, ttl time.Duration) error
	Invalidate(ctx context.Context, date string) error
}

type NoopLedgerCache struct{}

func (NoopLedgerCache) Get(_ context.Context, _ string) (*domain.DailyLedger, bool, error) {
	return nil, false, nil
}

func (NoopLedgerCache) Set(_ context.Context, _ string, _ *domain.DailyLedger, _ time.Duration) error {
	return nil
}

func (NoopLedgerCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

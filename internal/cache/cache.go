package cache

import (
	"context"
	"time"

	"arqueo/backend/internal/domain"
)

// BalanceCache holds the computed expected-balance view for an open shift.
// Entries are invalidated whenever a sale or movement lands on the shift, so
// a stale read never survives a write.
type BalanceCache interface {
	Get(ctx context.Context, shiftID string) (*domain.BalanceResponse, bool, error)
	Set(ctx context.Context, shiftID string, value *domain.BalanceResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, shiftID string) error
}

type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(_ context.Context, _ string) (*domain.BalanceResponse, bool, error) {
	return nil, false, nil
}

func (NoopBalanceCache) Set(_ context.Context, _ string, _ *domain.BalanceResponse, _ time.Duration) error {
	return nil
}

func (NoopBalanceCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

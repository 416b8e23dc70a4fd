package repository

import (
	"context"
	"time"

	"gift-notify/internal/domain/entity"
)

// DedupRepository records which notifications were already sent.
// Claim must be atomic: of two concurrent claims for the same key inside
// one window exactly one returns true.
type DedupRepository interface {
	Claim(ctx context.Context, key entity.DedupKey, window time.Duration) (bool, error)
	// Release drops a claim taken within the window so a later retry is not
	// suppressed.
	Release(ctx context.Context, key entity.DedupKey, window time.Duration) error
}

// DedupPruner deletes expired dedup claims. Backends with native expiry do
// not implement it.
type DedupPruner interface {
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

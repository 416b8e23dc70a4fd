package dedup

import (
	"context"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/repository"
)

// NoopStore claims every key. Used when DEDUP_BACKEND=none.
type NoopStore struct{}

var _ repository.DedupRepository = NoopStore{}

func (NoopStore) Claim(context.Context, entity.DedupKey, time.Duration) (bool, error) {
	return true, nil
}

func (NoopStore) Release(context.Context, entity.DedupKey, time.Duration) error { return nil }

package repository

import (
	"context"
	"time"

	"gift-notify/internal/domain/entity"
)

type PushSubscriptionRepository interface {
	// Upsert stores the subscription keyed by endpoint and reactivates it.
	// ID and CreatedAt are filled in on return.
	Upsert(ctx context.Context, sub *entity.PushSubscription) error
	ListActiveByUser(ctx context.Context, userID string) ([]*entity.PushSubscription, error)
	Deactivate(ctx context.Context, id int64) error
	TouchLastUsed(ctx context.Context, id int64, t time.Time) error
}

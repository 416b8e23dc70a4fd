package repository

import (
	"context"

	"gift-notify/internal/domain/entity"
)

// DeliveryAttemptRepository is the append-only audit log of gateway calls.
type DeliveryAttemptRepository interface {
	Create(ctx context.Context, attempt *entity.DeliveryAttempt) error
	ListByRequest(ctx context.Context, requestID string) ([]*entity.DeliveryAttempt, error)
}

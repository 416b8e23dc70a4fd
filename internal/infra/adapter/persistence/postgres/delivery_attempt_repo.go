package postgres

import (
	"context"
	"fmt"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/repository"
)

type DeliveryAttemptRepo struct{ db DBTX }

func NewDeliveryAttemptRepo(db DBTX) repository.DeliveryAttemptRepository {
	return &DeliveryAttemptRepo{db: db}
}

func (repo *DeliveryAttemptRepo) Create(ctx context.Context, a *entity.DeliveryAttempt) error {
	defer observe("insert_attempt", time.Now())
	const query = `
INSERT INTO delivery_attempts
    (id, request_id, event_type, recipient, channel, step,
     external_id, provider_status, error_code, error_message, success, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := repo.db.ExecContext(ctx, query,
		a.ID, a.RequestID, a.EventType, a.Recipient, string(a.Channel), a.Step,
		a.ExternalID, a.ProviderStatus, string(a.ErrorCode), a.ErrorMessage, a.Success, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *DeliveryAttemptRepo) ListByRequest(ctx context.Context, requestID string) ([]*entity.DeliveryAttempt, error) {
	defer observe("list_attempts", time.Now())
	const query = `
SELECT id, request_id, event_type, recipient, channel, step,
       external_id, provider_status, error_code, error_message, success, created_at
FROM delivery_attempts
WHERE request_id = $1
ORDER BY created_at ASC`
	rows, err := repo.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("ListByRequest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]*entity.DeliveryAttempt, 0, 4)
	for rows.Next() {
		var (
			a       entity.DeliveryAttempt
			channel string
			code    string
		)
		if err := rows.Scan(
			&a.ID, &a.RequestID, &a.EventType, &a.Recipient, &channel, &a.Step,
			&a.ExternalID, &a.ProviderStatus, &code, &a.ErrorMessage, &a.Success, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByRequest: %w", err)
		}
		a.Channel = entity.Channel(channel)
		a.ErrorCode = entity.ErrorCode(code)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

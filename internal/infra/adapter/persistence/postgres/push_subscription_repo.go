package postgres

import (
	"context"
	"fmt"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/repository"
)

type PushSubscriptionRepo struct{ db DBTX }

func NewPushSubscriptionRepo(db DBTX) repository.PushSubscriptionRepository {
	return &PushSubscriptionRepo{db: db}
}

// Upsert keys subscriptions by endpoint. A browser re-subscribing with the
// same endpoint gets its keys replaced and the row reactivated.
func (repo *PushSubscriptionRepo) Upsert(ctx context.Context, sub *entity.PushSubscription) error {
	defer observe("upsert_subscription", time.Now())
	const query = `
INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (endpoint) DO UPDATE
SET user_id = EXCLUDED.user_id,
    p256dh  = EXCLUDED.p256dh,
    auth    = EXCLUDED.auth,
    active  = TRUE
RETURNING id, created_at`
	err := repo.db.QueryRowContext(ctx, query, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	sub.Active = true
	return nil
}

func (repo *PushSubscriptionRepo) ListActiveByUser(ctx context.Context, userID string) ([]*entity.PushSubscription, error) {
	defer observe("list_subscriptions", time.Now())
	const query = `
SELECT id, user_id, endpoint, p256dh, auth, active, last_used_at, created_at
FROM push_subscriptions
WHERE user_id = $1 AND active = TRUE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ListActiveByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*entity.PushSubscription, 0, 4)
	for rows.Next() {
		var s entity.PushSubscription
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.Active, &s.LastUsedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListActiveByUser: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (repo *PushSubscriptionRepo) Deactivate(ctx context.Context, id int64) error {
	defer observe("deactivate_subscription", time.Now())
	const query = `UPDATE push_subscriptions SET active = FALSE WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Deactivate: %w", entity.ErrNotFound)
	}
	return nil
}

func (repo *PushSubscriptionRepo) TouchLastUsed(ctx context.Context, id int64, t time.Time) error {
	defer observe("touch_subscription", time.Now())
	const query = `UPDATE push_subscriptions SET last_used_at = $1 WHERE id = $2`
	if _, err := repo.db.ExecContext(ctx, query, t, id); err != nil {
		return fmt.Errorf("TouchLastUsed: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/repository"
)

// DedupRepo claims notifications in notification_dedup. The unique
// (event_type, recipient, event_key, bucket) constraint serializes claims
// inside one bucket; the NOT EXISTS guard covers claims made in the previous
// bucket that are still inside the window.
type DedupRepo struct {
	db  DBTX
	now func() time.Time
}

var (
	_ repository.DedupRepository = (*DedupRepo)(nil)
	_ repository.DedupPruner     = (*DedupRepo)(nil)
)

func NewDedupRepo(db DBTX) *DedupRepo {
	return &DedupRepo{db: db, now: time.Now}
}

func (repo *DedupRepo) Claim(ctx context.Context, key entity.DedupKey, window time.Duration) (bool, error) {
	defer observe("claim_dedup", time.Now())
	const query = `
INSERT INTO notification_dedup (event_type, recipient, event_key, bucket, claimed_at)
SELECT $1::text, $2::text, $3::text, $4::bigint, $5::timestamptz
WHERE NOT EXISTS (
    SELECT 1 FROM notification_dedup
    WHERE event_type = $1::text
      AND recipient  = $2::text
      AND event_key  = $3::text
      AND claimed_at > $6::timestamptz
)
ON CONFLICT (event_type, recipient, event_key, bucket) DO NOTHING`
	now := repo.now().UTC()
	res, err := repo.db.ExecContext(ctx, query,
		key.EventType, key.Recipient, key.EventKey, key.Bucket(now, window), now, now.Add(-window),
	)
	if err != nil {
		return false, fmt.Errorf("Claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Claim: %w", err)
	}
	return n == 1, nil
}

func (repo *DedupRepo) Release(ctx context.Context, key entity.DedupKey, window time.Duration) error {
	defer observe("release_dedup", time.Now())
	const query = `
DELETE FROM notification_dedup
WHERE event_type = $1 AND recipient = $2 AND event_key = $3 AND claimed_at > $4`
	now := repo.now().UTC()
	if _, err := repo.db.ExecContext(ctx, query, key.EventType, key.Recipient, key.EventKey, now.Add(-window)); err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

// PruneBefore deletes claims older than t and returns how many were removed.
func (repo *DedupRepo) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	defer observe("prune_dedup", time.Now())
	const query = `DELETE FROM notification_dedup WHERE claimed_at < $1`
	res, err := repo.db.ExecContext(ctx, query, t)
	if err != nil {
		return 0, fmt.Errorf("PruneBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PruneBefore: %w", err)
	}
	return n, nil
}

package db

import (
	"database/sql"
)

// MigrateUp creates the notification tables. Every statement is idempotent.
func MigrateUp(db *sql.DB) error {
	// append-only; rows are never updated
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS delivery_attempts (
    id              UUID PRIMARY KEY,
    request_id      TEXT NOT NULL,
    event_type      TEXT NOT NULL DEFAULT '',
    recipient       TEXT NOT NULL,
    channel         VARCHAR(16) NOT NULL,
    step            VARCHAR(32) NOT NULL,
    external_id     TEXT NOT NULL DEFAULT '',
    provider_status TEXT NOT NULL DEFAULT '',
    error_code      VARCHAR(32) NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    success         BOOLEAN NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_delivery_attempts_channel CHECK (channel IN ('sms', 'whatsapp', 'push'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS push_subscriptions (
    id           BIGSERIAL PRIMARY KEY,
    user_id      TEXT NOT NULL,
    endpoint     TEXT NOT NULL UNIQUE,
    p256dh       TEXT NOT NULL,
    auth         TEXT NOT NULL,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    last_used_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notification_dedup (
    event_type TEXT NOT NULL,
    recipient  TEXT NOT NULL,
    event_key  TEXT NOT NULL DEFAULT '',
    bucket     BIGINT NOT NULL,
    claimed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (event_type, recipient, event_key, bucket)
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_request_id ON delivery_attempts(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_created_at ON delivery_attempts(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_active ON push_subscriptions(user_id) WHERE active = TRUE`,
		// lookback guard and retention prune
		`CREATE INDEX IF NOT EXISTS idx_notification_dedup_claimed_at ON notification_dedup(event_type, recipient, event_key, claimed_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown drops the notification tables.
// Use with caution: this deletes the delivery audit log.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS notification_dedup`,
		`DROP TABLE IF EXISTS push_subscriptions`,
		`DROP TABLE IF EXISTS delivery_attempts`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Package dedup provides duplicate-suppression backends other than Postgres.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/repository"
)

const keyPrefix = "notify:dedup:"

// ValkeyStore claims dedup keys with SET NX EX. Expiry is native, so no
// pruning job is needed.
type ValkeyStore struct {
	client valkey.Client
}

var _ repository.DedupRepository = (*ValkeyStore)(nil)

// NewValkeyClient connects to addr and verifies the connection with PING.
func NewValkeyClient(ctx context.Context, addr, password string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	return client, nil
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) Claim(ctx context.Context, key entity.DedupKey, window time.Duration) (bool, error) {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	cmd := s.client.B().Set().Key(redisKey(key)).Value(time.Now().UTC().Format(time.RFC3339)).Nx().ExSeconds(secs).Build()
	err := s.client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim dedup key: %w", err)
	}
	return true, nil
}

func (s *ValkeyStore) Release(ctx context.Context, key entity.DedupKey, _ time.Duration) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(redisKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("release dedup key: %w", err)
	}
	return nil
}

// Ping backs the readiness check.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the underlying connections.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

func redisKey(key entity.DedupKey) string {
	return keyPrefix + strings.Join([]string{key.EventType, key.Recipient, key.EventKey}, ":")
}

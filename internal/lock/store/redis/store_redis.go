// Package redis backs step leases with Redis so multiple service instances
// agree on lock ownership. SET NX with a server-side TTL gives atomic
// acquire-if-absent; the key vanishing on TTL is the expiry mechanism.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"screenflow/internal/lock"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

const lockKeyPrefix = "steplock:"

// RedisLockStore implements lock.Store on Redis. The server TTL is the
// source of truth for expiry; the caller's `now` is ignored here because
// the key simply vanishes when the lease lapses.
type RedisLockStore struct {
	client *redis.Client
}

func NewRedisLockStore(client *redis.Client) *RedisLockStore {
	return &RedisLockStore{client: client}
}

func lockKey(sessionID id.SessionID, step models.Step) string {
	return fmt.Sprintf("%s%s:%s", lockKeyPrefix, sessionID, step)
}

func (s *RedisLockStore) Acquire(ctx context.Context, lease lock.StepLock, _ time.Time) (lock.StepLock, error) {
	payload, err := json.Marshal(lease)
	if err != nil {
		return lock.StepLock{}, fmt.Errorf("marshal lease: %w", err)
	}
	ttl := time.Until(lease.ExpiresAt)
	if ttl <= 0 {
		return lock.StepLock{}, fmt.Errorf("lease already expired")
	}

	key := lockKey(lease.SessionID, lease.Step)
	ok, err := s.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return lock.StepLock{}, fmt.Errorf("setnx lock: %w", err)
	}
	if ok {
		return lease, nil
	}

	existing, err := s.Get(ctx, lease.SessionID, lease.Step)
	if err != nil {
		// holder vanished between SETNX and GET; treat as conflict with
		// unknown holder rather than silently stealing the lease
		return lock.StepLock{}, sentinel.ErrConflict
	}
	return existing, sentinel.ErrConflict
}

func (s *RedisLockStore) Get(ctx context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error) {
	raw, err := s.client.Get(ctx, lockKey(sessionID, step)).Bytes()
	if err == redis.Nil {
		return lock.StepLock{}, sentinel.ErrNotFound
	}
	if err != nil {
		return lock.StepLock{}, fmt.Errorf("get lock: %w", err)
	}
	var lease lock.StepLock
	if err := json.Unmarshal(raw, &lease); err != nil {
		return lock.StepLock{}, fmt.Errorf("unmarshal lease: %w", err)
	}
	return lease, nil
}

func (s *RedisLockStore) Delete(ctx context.Context, sessionID id.SessionID, step models.Step) error {
	if err := s.client.Del(ctx, lockKey(sessionID, step)).Err(); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisLockCoordinator stores leases in Redis so multiple server instances
// can share lock state. The key TTL mirrors the lease expiry, so Redis
// evicts stale leases on its own.
type RedisLockCoordinator struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisLockCoordinator creates a Redis-backed lock coordinator.
func NewRedisLockCoordinator(client *redis.Client) *RedisLockCoordinator {
	return &RedisLockCoordinator{
		client:    client,
		keyPrefix: "task:lock:",
		now:       time.Now,
	}
}

func (c *RedisLockCoordinator) key(taskID uuid.UUID) string {
	return c.keyPrefix + taskID.String()
}

func (c *RedisLockCoordinator) Acquire(ctx context.Context, taskID, userID uuid.UUID, ttl time.Duration) (*Lease, error) {
	now := c.now()
	lease := &Lease{
		TaskID:     taskID,
		UserID:     userID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	data, err := json.Marshal(lease)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize lease")
	}

	ok, err := c.client.SetNX(ctx, c.key(taskID), data, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire lease")
	}
	if ok {
		return lease, nil
	}

	existing, err := c.get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if existing == nil || now.After(existing.ExpiresAt) {
		// The key vanished or holds an expired lease; take it over.
		if err := c.client.Set(ctx, c.key(taskID), data, ttl).Err(); err != nil {
			return nil, errors.Wrap(err, "failed to take over expired lease")
		}
		return lease, nil
	}
	if existing.UserID == userID {
		// Idempotent re-acquire renews the lease.
		if err := c.client.Set(ctx, c.key(taskID), data, ttl).Err(); err != nil {
			return nil, errors.Wrap(err, "failed to renew lease")
		}
		return lease, nil
	}
	return nil, &LeaseConflictError{
		TaskID:    taskID,
		Holder:    existing.UserID,
		ExpiresAt: existing.ExpiresAt,
	}
}

func (c *RedisLockCoordinator) Release(ctx context.Context, taskID, userID uuid.UUID) error {
	existing, err := c.get(ctx, taskID)
	if err != nil {
		return err
	}
	if existing == nil || c.now().After(existing.ExpiresAt) {
		return nil
	}
	if existing.UserID != userID {
		return ErrForbidden
	}
	return errors.Wrap(c.client.Del(ctx, c.key(taskID)).Err(), "failed to release lease")
}

func (c *RedisLockCoordinator) Get(ctx context.Context, taskID uuid.UUID) (*Lease, error) {
	existing, err := c.get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if existing == nil || c.now().After(existing.ExpiresAt) {
		return nil, nil
	}
	return existing, nil
}

func (c *RedisLockCoordinator) Clear(ctx context.Context, taskID uuid.UUID) error {
	return errors.Wrap(c.client.Del(ctx, c.key(taskID)).Err(), "failed to clear lease")
}

func (c *RedisLockCoordinator) get(ctx context.Context, taskID uuid.UUID) (*Lease, error) {
	data, err := c.client.Get(ctx, c.key(taskID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read lease")
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, errors.Wrap(err, "failed to decode lease")
	}
	return &lease, nil
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease is a time-bounded exclusive editing claim on a single task. A lease
// past its expiry is treated as absent on every lock-sensitive operation;
// there is no background reaper.
type Lease struct {
	TaskID     uuid.UUID `json:"task_id"`
	UserID     uuid.UUID `json:"user_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LockCoordinator enforces at most one live lease per task. The in-memory
// implementation serves single-node deployments; the Redis implementation
// is the shared-store seam for running multiple server instances.
type LockCoordinator interface {
	// Acquire grants or renews a lease. Re-acquiring one's own lease is
	// idempotent and extends the expiry. A live lease held by another user
	// fails with *LeaseConflictError.
	Acquire(ctx context.Context, taskID, userID uuid.UUID, ttl time.Duration) (*Lease, error)
	// Release drops the caller's lease. Releasing an unlocked task is a
	// no-op success; releasing another user's lease fails with ErrForbidden.
	Release(ctx context.Context, taskID, userID uuid.UUID) error
	// Get returns the live lease for a task, or nil when unlocked or
	// expired.
	Get(ctx context.Context, taskID uuid.UUID) (*Lease, error)
	// Clear drops any lease unconditionally. Used by the commit path, which
	// has already passed the lock check.
	Clear(ctx context.Context, taskID uuid.UUID) error
}

// LeaseConflictError reports a lease held by a different user.
type LeaseConflictError struct {
	TaskID    uuid.UUID
	Holder    uuid.UUID
	ExpiresAt time.Time
}

func (e *LeaseConflictError) Error() string {
	return fmt.Sprintf("task %s is locked by %s until %s",
		e.TaskID, e.Holder, e.ExpiresAt.Format(time.RFC3339))
}

// MemoryLockCoordinator keeps leases in a process-local map.
type MemoryLockCoordinator struct {
	mu     sync.Mutex
	leases map[uuid.UUID]*Lease
	now    func() time.Time
}

// NewMemoryLockCoordinator creates an in-memory lock coordinator.
func NewMemoryLockCoordinator() *MemoryLockCoordinator {
	return &MemoryLockCoordinator{
		leases: make(map[uuid.UUID]*Lease),
		now:    time.Now,
	}
}

func (c *MemoryLockCoordinator) Acquire(ctx context.Context, taskID, userID uuid.UUID, ttl time.Duration) (*Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.leases[taskID]; ok && now.Before(existing.ExpiresAt) && existing.UserID != userID {
		return nil, &LeaseConflictError{
			TaskID:    taskID,
			Holder:    existing.UserID,
			ExpiresAt: existing.ExpiresAt,
		}
	}

	lease := &Lease{
		TaskID:     taskID,
		UserID:     userID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	c.leases[taskID] = lease
	out := *lease
	return &out, nil
}

func (c *MemoryLockCoordinator) Release(ctx context.Context, taskID, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.leases[taskID]
	if !ok || c.now().After(existing.ExpiresAt) {
		delete(c.leases, taskID)
		return nil
	}
	if existing.UserID != userID {
		return ErrForbidden
	}
	delete(c.leases, taskID)
	return nil
}

func (c *MemoryLockCoordinator) Get(ctx context.Context, taskID uuid.UUID) (*Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.leases[taskID]
	if !ok {
		return nil, nil
	}
	if c.now().After(existing.ExpiresAt) {
		delete(c.leases, taskID)
		return nil, nil
	}
	out := *existing
	return &out, nil
}

func (c *MemoryLockCoordinator) Clear(ctx context.Context, taskID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.leases, taskID)
	return nil
}

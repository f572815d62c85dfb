// Package repository defines the storage contracts for tasks, users and the
// activity log, with Postgres and in-memory implementations.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/pkg/models"
)

// Storage errors. Services translate these into the API error taxonomy.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateTitle is returned when a write violates title uniqueness.
	ErrDuplicateTitle = errors.New("task title already exists")
	// ErrStaleVersion is returned when a conditional write loses the race:
	// the stored version no longer matches the version the caller read.
	ErrStaleVersion = errors.New("task version is stale")
)

// TaskRepository is the durable task store. Update is a conditional write:
// the row is only written when its stored version equals expectedVersion,
// which serializes read-modify-write sequences on the same task.
type TaskRepository interface {
	List(ctx context.Context) ([]*models.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByTitle(ctx context.Context, title string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error

	// CountActiveByAssignee returns, per user id, the number of assigned
	// tasks whose status is not Done. Users with no active tasks are absent.
	CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]int, error)
}

// ActionRepository is the append-only activity log.
type ActionRepository interface {
	Append(ctx context.Context, action *models.Action) error
	Recent(ctx context.Context, limit int) ([]*models.Action, error)
}

// UserRepository reads registered users. List returns users in canonical
// order (username ascending); smart assignment depends on that order for
// deterministic tie-breaking.
type UserRepository interface {
	List(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

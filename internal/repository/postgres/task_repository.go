package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
	"github.com/syncboard/syncboard/pkg/observability"
)

// uniqueViolation is the Postgres error code for a unique index breach.
const uniqueViolation = "23505"

type taskRepository struct {
	*BaseRepository
}

// NewTaskRepository creates the Postgres task store.
func NewTaskRepository(db *sqlx.DB, logger observability.Logger, metrics observability.MetricsClient) repository.TaskRepository {
	return &taskRepository{
		BaseRepository: NewBaseRepository(db, logger, metrics, "task_repository"),
	}
}

const taskColumns = `id, title, description, status, priority, assigned_to,
	created_by, last_edited_by, created_at, last_edited_at, version,
	is_being_edited, editing_by, editing_expires_at`

func (r *taskRepository) List(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.execute(ctx, "list_tasks", func(ctx context.Context) error {
		query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC`
		return r.db.SelectContext(ctx, &tasks, query)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return tasks, nil
}

func (r *taskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.execute(ctx, "get_task", func(ctx context.Context) error {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
		return r.db.GetContext(ctx, &task, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get task")
	}
	return &task, nil
}

func (r *taskRepository) GetByTitle(ctx context.Context, title string) (*models.Task, error) {
	var task models.Task
	err := r.execute(ctx, "get_task_by_title", func(ctx context.Context) error {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE title = $1`
		return r.db.GetContext(ctx, &task, query, title)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get task by title")
	}
	return &task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	err := r.execute(ctx, "create_task", func(ctx context.Context) error {
		query := `
			INSERT INTO tasks (` + taskColumns + `)
			VALUES (:id, :title, :description, :status, :priority, :assigned_to,
				:created_by, :last_edited_by, :created_at, :last_edited_at, :version,
				:is_being_edited, :editing_by, :editing_expires_at)`
		_, err := r.db.NamedExecContext(ctx, query, task)
		return err
	})
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicateTitle
	}
	if err != nil {
		return errors.Wrap(err, "failed to create task")
	}
	return nil
}

// Update writes the task conditionally: the row must still carry
// expectedVersion. Zero rows affected means a concurrent commit won the
// race and the caller must re-read.
func (r *taskRepository) Update(ctx context.Context, task *models.Task, expectedVersion int) error {
	var affected int64
	err := r.execute(ctx, "update_task", func(ctx context.Context) error {
		query := `
			UPDATE tasks
			SET title = $1, description = $2, status = $3, priority = $4,
			    assigned_to = $5, last_edited_by = $6, last_edited_at = $7,
			    version = $8, is_being_edited = $9, editing_by = $10,
			    editing_expires_at = $11
			WHERE id = $12 AND version = $13`
		result, err := r.db.ExecContext(ctx, query,
			task.Title, task.Description, task.Status, task.Priority,
			task.AssignedTo, task.LastEditedBy, task.LastEditedAt,
			task.Version, task.IsBeingEdited, task.EditingBy,
			task.EditingExpiresAt, task.ID, expectedVersion)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicateTitle
	}
	if err != nil {
		return errors.Wrap(err, "failed to update task")
	}
	if affected == 0 {
		// Distinguish a missing row from a lost version race.
		if _, getErr := r.Get(ctx, task.ID); getErr != nil {
			return repository.ErrNotFound
		}
		return repository.ErrStaleVersion
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.execute(ctx, "delete_task", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete task")
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *taskRepository) CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]int, error) {
	type row struct {
		AssignedTo uuid.UUID `db:"assigned_to"`
		Count      int       `db:"count"`
	}
	var rows []row
	err := r.execute(ctx, "count_active_by_assignee", func(ctx context.Context) error {
		query := `
			SELECT assigned_to, COUNT(*) AS count
			FROM tasks
			WHERE assigned_to IS NOT NULL AND status <> 'Done'
			GROUP BY assigned_to`
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count active tasks")
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.AssignedTo] = r.Count
	}
	return counts, nil
}

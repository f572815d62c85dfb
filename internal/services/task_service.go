// Package services contains the board's concurrency-control core: the edit
// lease manager, the version guard and commit pipeline, the conflict
// resolver and the assignment balancer.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/events"
	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
	"github.com/syncboard/syncboard/pkg/observability"
)

// DefaultLeaseTTL bounds how long an edit lease survives without renewal.
const DefaultLeaseTTL = 30 * time.Second

// TaskService runs every task mutation through the lock/version/commit
// pipeline: existence check, lease check, title validation, conditional
// write, activity log append, broadcast.
type TaskService struct {
	tasks     repository.TaskRepository
	actions   repository.ActionRepository
	locks     LockCoordinator
	balancer  *AssignmentBalancer
	publisher events.Publisher
	populator *Populator
	logger    observability.Logger
	metrics   observability.MetricsClient

	leaseTTL time.Duration
	now      func() time.Time
}

// TaskServiceConfig wires the task service dependencies.
type TaskServiceConfig struct {
	Tasks     repository.TaskRepository
	Actions   repository.ActionRepository
	Users     repository.UserRepository
	Locks     LockCoordinator
	Publisher events.Publisher
	Logger    observability.Logger
	Metrics   observability.MetricsClient
	LeaseTTL  time.Duration
}

// NewTaskService creates the task service.
func NewTaskService(cfg TaskServiceConfig) *TaskService {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	return &TaskService{
		tasks:     cfg.Tasks,
		actions:   cfg.Actions,
		locks:     cfg.Locks,
		balancer:  NewAssignmentBalancer(cfg.Users, cfg.Tasks),
		publisher: cfg.Publisher,
		populator: NewPopulator(cfg.Users),
		logger:    cfg.Logger.WithPrefix("task-service"),
		metrics:   cfg.Metrics,
		leaseTTL:  cfg.LeaseTTL,
		now:       time.Now,
	}
}

// Populator exposes the read-side join for handlers that render records
// outside the service (the websocket roster, tests).
func (s *TaskService) Populator() *Populator { return s.populator }

// CreateTaskInput carries the fields of a create request.
type CreateTaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	AssignedTo  *uuid.UUID          `json:"assignedTo"`
}

// List returns every task, newest first, with user references populated.
func (s *TaskService) List(ctx context.Context) ([]*models.TaskView, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.populator.TaskViews(ctx, tasks), nil
}

// Create validates the title rules and commits a new task at version 1.
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, input CreateTaskInput) (*models.TaskView, error) {
	if input.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if models.IsReservedTitle(input.Title) {
		return nil, &ReservedTitleError{Title: input.Title}
	}
	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	}
	if !models.ValidStatus(input.Status) {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !models.ValidPriority(input.Priority) {
		return nil, &ValidationError{Field: "priority", Message: "unknown priority"}
	}

	now := s.now()
	task := &models.Task{
		ID:           uuid.New(),
		Title:        input.Title,
		Description:  input.Description,
		Status:       input.Status,
		Priority:     input.Priority,
		AssignedTo:   input.AssignedTo,
		CreatedBy:    userID,
		LastEditedBy: &userID,
		CreatedAt:    now,
		LastEditedAt: now,
		Version:      1,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrDuplicateTitle) {
			return nil, &DuplicateTitleError{Title: input.Title}
		}
		return nil, err
	}
	s.metrics.IncrementCounter("task_commits", 1)

	s.logAction(ctx, userID, &task.ID, models.ActionCreate, models.JSONMap{"task": task.Title})

	view := s.populator.TaskView(ctx, task)
	s.publisher.Publish(ctx, models.EventTaskCreated, view)
	return view, nil
}

// Update runs a proposed edit through the full pipeline. A live lease held
// by another user, or a conditional write lost to a concurrent commit,
// surfaces as *ConflictError carrying the current server record.
func (s *TaskService) Update(ctx context.Context, taskID, userID uuid.UUID, patch models.TaskPatch) (*models.TaskView, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if conflictErr := s.checkLease(ctx, task, userID); conflictErr != nil {
		return nil, conflictErr
	}

	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if patch.Title != "" && patch.Title != task.Title {
		if err := s.validateTitle(ctx, patch.Title, taskID); err != nil {
			return nil, err
		}
	}

	expected := task.Version
	applyPatch(task, patch)
	s.stampCommit(task, userID, expected+1)

	if err := s.commit(ctx, task, expected, true); err != nil {
		return nil, err
	}

	s.logAction(ctx, userID, &task.ID, models.ActionUpdate, models.JSONMap{"task": task.Title})

	view := s.populator.TaskView(ctx, task)
	s.publisher.Publish(ctx, models.EventTaskUpdated, view)
	return view, nil
}

// Delete removes a task and emits the terminal event.
func (s *TaskService) Delete(ctx context.Context, taskID, userID uuid.UUID) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.locks.Clear(ctx, taskID); err != nil {
		s.logger.Warn("failed to clear lease after delete", map[string]interface{}{
			"task_id": taskID, "error": err.Error(),
		})
	}
	s.metrics.IncrementCounter("task_commits", 1)

	s.logAction(ctx, userID, &taskID, models.ActionDelete, models.JSONMap{"task": task.Title})
	s.publisher.Publish(ctx, models.EventTaskDeleted, models.TaskDeletedPayload{TaskID: taskID})
	return nil
}

// StartEditing acquires (or renews) the caller's edit lease and mirrors it
// onto the task record.
func (s *TaskService) StartEditing(ctx context.Context, taskID, userID uuid.UUID) (*models.TaskView, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	lease, err := s.locks.Acquire(ctx, taskID, userID, s.leaseTTL)
	if err != nil {
		var conflict *LeaseConflictError
		if errors.As(err, &conflict) {
			s.metrics.IncrementCounter("lock_conflicts", 1)
			return nil, s.conflictWithCurrent(ctx, task, &conflict.Holder, &conflict.ExpiresAt)
		}
		return nil, err
	}
	s.metrics.IncrementCounter("locks_acquired", 1)

	task = s.mirrorLease(ctx, task, func(t *models.Task) {
		t.SetLock(userID, lease.ExpiresAt)
	})

	view := s.populator.TaskView(ctx, task)
	if view.EditingBy != nil {
		s.publisher.Publish(ctx, models.EventTaskLocked, models.TaskLockedPayload{
			TaskID: taskID,
			User:   *view.EditingBy,
		})
	}
	return view, nil
}

// CancelEditing releases the caller's lease. Only the holder may release;
// releasing an unlocked task succeeds as a no-op.
func (s *TaskService) CancelEditing(ctx context.Context, taskID, userID uuid.UUID) (*models.TaskView, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.locks.Release(ctx, taskID, userID); err != nil {
		return nil, err
	}

	task = s.mirrorLease(ctx, task, func(t *models.Task) {
		t.ClearLock()
	})

	s.publisher.Publish(ctx, models.EventTaskUnlocked, models.TaskUnlockedPayload{TaskID: taskID})
	return s.populator.TaskView(ctx, task), nil
}

// ResolveConflict commits the client's chosen resolution through the same
// pipeline as a normal update, always clearing the lease and recording
// which strategy was used.
func (s *TaskService) ResolveConflict(ctx context.Context, taskID, userID uuid.UUID, resolution Resolution, patch models.TaskPatch) (*models.TaskView, error) {
	if !ValidResolution(resolution) {
		return nil, &ValidationError{Field: "resolution", Message: "invalid resolution type"}
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if resolution == ResolutionYours || resolution == ResolutionMerge {
		if err := validatePatch(patch); err != nil {
			return nil, err
		}
	}

	expected := task.Version
	applyResolution(task, patch, resolution)

	if task.Title != "" && models.IsReservedTitle(task.Title) {
		return nil, &ReservedTitleError{Title: task.Title}
	}
	if patch.Title != "" && (resolution == ResolutionYours || resolution == ResolutionMerge) {
		if err := s.validateTitle(ctx, task.Title, taskID); err != nil {
			return nil, err
		}
	}

	s.stampCommit(task, userID, expected+1)

	if err := s.commit(ctx, task, expected, true); err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("conflicts_resolved", 1)

	s.logAction(ctx, userID, &task.ID, models.ActionResolveConflict, models.JSONMap{
		"task":       task.Title,
		"resolution": string(resolution),
	})

	view := s.populator.TaskView(ctx, task)
	s.publisher.Publish(ctx, models.EventTaskUpdated, view)
	return view, nil
}

// SmartAssign assigns the task to the least-loaded user. The version is
// not incremented: only field-changing edits bump it, and assignment is a
// balancing action, not an edit the client computed against a version.
func (s *TaskService) SmartAssign(ctx context.Context, taskID, userID uuid.UUID) (*models.TaskView, string, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, "", err
	}

	assignee, activeTasks, err := s.balancer.PickAssignee(ctx)
	if err != nil {
		return nil, "", err
	}

	expected := task.Version
	task.AssignedTo = &assignee.ID
	task.LastEditedBy = &userID
	task.LastEditedAt = s.now()

	// No lease clear: assignment is not an edit commit, and any live
	// editing claim on the task belongs to whoever holds it.
	if err := s.commit(ctx, task, expected, false); err != nil {
		return nil, "", err
	}

	s.logAction(ctx, userID, &task.ID, models.ActionAssign, models.JSONMap{
		"task":        task.Title,
		"assignedTo":  assignee.Username,
		"smartAssign": true,
	})

	view := s.populator.TaskView(ctx, task)
	s.publisher.Publish(ctx, models.EventTaskUpdated, view)

	message := fmt.Sprintf("Task assigned to %s (%d active tasks)", assignee.Username, activeTasks)
	return view, message, nil
}

// RecentActivity returns the bounded live feed, newest first.
func (s *TaskService) RecentActivity(ctx context.Context) ([]*models.ActionView, error) {
	actions, err := s.actions.Recent(ctx, models.RecentActionLimit)
	if err != nil {
		return nil, err
	}
	return s.populator.ActionViews(ctx, actions), nil
}

// Pipeline helpers

func (s *TaskService) getTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// checkLease rejects the mutation when another user holds a live lease.
func (s *TaskService) checkLease(ctx context.Context, task *models.Task, userID uuid.UUID) error {
	lease, err := s.locks.Get(ctx, task.ID)
	if err != nil {
		return err
	}
	if lease != nil && lease.UserID != userID {
		s.metrics.IncrementCounter("lock_conflicts", 1)
		return s.conflictWithCurrent(ctx, task, &lease.UserID, &lease.ExpiresAt)
	}
	return nil
}

// stampCommit applies the commit metadata: editor, timestamp, version, and
// the implicit lease clear.
func (s *TaskService) stampCommit(task *models.Task, userID uuid.UUID, version int) {
	task.LastEditedBy = &userID
	task.LastEditedAt = s.now()
	task.Version = version
	task.ClearLock()
}

// commit performs the conditional write and translates storage races into
// the conflict taxonomy. clearLease is set by callers that ran the lock
// check; smart assign never checks the lease and must leave a foreign
// holder's claim intact.
func (s *TaskService) commit(ctx context.Context, task *models.Task, expectedVersion int, clearLease bool) error {
	err := s.tasks.Update(ctx, task, expectedVersion)
	switch {
	case err == nil:
		if clearLease {
			if clearErr := s.locks.Clear(ctx, task.ID); clearErr != nil {
				s.logger.Warn("failed to clear lease after commit", map[string]interface{}{
					"task_id": task.ID, "error": clearErr.Error(),
				})
			}
		}
		s.metrics.IncrementCounter("task_commits", 1)
		return nil
	case errors.Is(err, repository.ErrStaleVersion):
		s.metrics.IncrementCounter("version_conflicts", 1)
		current, getErr := s.tasks.Get(ctx, task.ID)
		if getErr != nil {
			return getErr
		}
		return s.conflictWithCurrent(ctx, current, nil, nil)
	case errors.Is(err, repository.ErrDuplicateTitle):
		return &DuplicateTitleError{Title: task.Title}
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

func (s *TaskService) conflictWithCurrent(ctx context.Context, current *models.Task, holder *uuid.UUID, expires *time.Time) *ConflictError {
	return &ConflictError{
		TaskID:    current.ID,
		Holder:    holder,
		ExpiresAt: expires,
		Current:   s.populator.TaskView(ctx, current),
	}
}

func (s *TaskService) validateTitle(ctx context.Context, title string, selfID uuid.UUID) error {
	if models.IsReservedTitle(title) {
		return &ReservedTitleError{Title: title}
	}
	existing, err := s.tasks.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return &DuplicateTitleError{Title: title}
	}
	return nil
}

// mirrorLease writes the lease fields onto the task record without bumping
// the version. The coordinator stays authoritative; a lost write race here
// is retried once against the fresh record and otherwise tolerated.
func (s *TaskService) mirrorLease(ctx context.Context, task *models.Task, mutate func(*models.Task)) *models.Task {
	for attempt := 0; attempt < 2; attempt++ {
		mutate(task)
		err := s.tasks.Update(ctx, task, task.Version)
		if err == nil {
			return task
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			s.logger.Warn("failed to mirror lease onto task record", map[string]interface{}{
				"task_id": task.ID, "error": err.Error(),
			})
			return task
		}
		fresh, getErr := s.tasks.Get(ctx, task.ID)
		if getErr != nil {
			return task
		}
		task = fresh
	}
	return task
}

// logAction appends to the activity log and broadcasts the entry. The
// mutation is already committed at this point, so a log failure is
// reported but does not roll anything back.
func (s *TaskService) logAction(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID, actionType models.ActionType, details models.JSONMap) {
	action := &models.Action{
		ID:         uuid.New(),
		UserID:     userID,
		TaskID:     taskID,
		ActionType: actionType,
		Details:    details,
		Timestamp:  s.now(),
	}
	if err := s.actions.Append(ctx, action); err != nil {
		s.logger.Error("failed to append action", map[string]interface{}{
			"action_type": actionType, "error": err.Error(),
		})
		return
	}
	s.publisher.Publish(ctx, models.EventActionLogged, s.populator.ActionView(ctx, action))
}

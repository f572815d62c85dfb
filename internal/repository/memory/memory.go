// Package memory holds in-memory repository implementations for tests and
// single-node development. The conditional-write contract matches the
// Postgres implementation exactly.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
)

// TaskStore is an in-memory TaskRepository.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.Task
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *TaskStore) List(ctx context.Context) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTask(t), nil
}

func (s *TaskStore) GetByTitle(ctx context.Context, title string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.Title == title {
			return copyTask(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Title == task.Title {
			return repository.ErrDuplicateTitle
		}
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *TaskStore) Update(ctx context.Context, task *models.Task, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		return repository.ErrStaleVersion
	}
	for id, t := range s.tasks {
		if id != task.ID && t.Title == task.Title {
			return repository.ErrDuplicateTitle
		}
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[uuid.UUID]int)
	for _, t := range s.tasks {
		if t.AssignedTo != nil && t.IsActive() {
			counts[*t.AssignedTo]++
		}
	}
	return counts, nil
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		c.AssignedTo = &v
	}
	if t.LastEditedBy != nil {
		v := *t.LastEditedBy
		c.LastEditedBy = &v
	}
	if t.EditingBy != nil {
		v := *t.EditingBy
		c.EditingBy = &v
	}
	if t.EditingExpiresAt != nil {
		v := *t.EditingExpiresAt
		c.EditingExpiresAt = &v
	}
	return &c
}

// ActionStore is an in-memory ActionRepository.
type ActionStore struct {
	mu      sync.RWMutex
	actions []*models.Action
}

// NewActionStore creates an empty in-memory activity log.
func NewActionStore() *ActionStore {
	return &ActionStore{}
}

func (s *ActionStore) Append(ctx context.Context, action *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *action
	s.actions = append(s.actions, &c)
	return nil
}

func (s *ActionStore) Recent(ctx context.Context, limit int) ([]*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Action, len(s.actions))
	copy(out, s.actions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserStore is an in-memory UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*models.User)}
}

// Add registers a user. Test seeding helper; production users come from the
// auth service's table.
func (s *UserStore) Add(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *user
	s.users[user.ID] = &c
}

func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
)

func newTask(title string, version int) *models.Task {
	return &models.Task{
		ID:        uuid.New(),
		Title:     title,
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityMedium,
		CreatedBy: uuid.New(),
		CreatedAt: time.Now(),
		Version:   version,
	}
}

func TestTaskStoreConditionalWrite(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	task := newTask("conditional", 1)
	require.NoError(t, store.Create(ctx, task))

	t.Run("matching version wins", func(t *testing.T) {
		task.Description = "edited"
		task.Version = 2
		require.NoError(t, store.Update(ctx, task, 1))

		stored, err := store.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version)
		assert.Equal(t, "edited", stored.Description)
	})

	t.Run("stale version loses", func(t *testing.T) {
		stale := *task
		stale.Description = "stale write"
		stale.Version = 2
		err := store.Update(ctx, &stale, 1)
		require.ErrorIs(t, err, repository.ErrStaleVersion)

		stored, getErr := store.Get(ctx, task.ID)
		require.NoError(t, getErr)
		assert.Equal(t, "edited", stored.Description)
	})

	t.Run("missing task", func(t *testing.T) {
		ghost := newTask("ghost", 1)
		require.ErrorIs(t, store.Update(ctx, ghost, 1), repository.ErrNotFound)
	})
}

func TestTaskStoreTitleUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.Create(ctx, newTask("taken", 1)))
	require.ErrorIs(t, store.Create(ctx, newTask("taken", 1)), repository.ErrDuplicateTitle)

	other := newTask("free", 1)
	require.NoError(t, store.Create(ctx, other))
	other.Title = "taken"
	other.Version = 2
	require.ErrorIs(t, store.Update(ctx, other, 1), repository.ErrDuplicateTitle)
}

func TestTaskStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	task := newTask("isolated", 1)
	require.NoError(t, store.Create(ctx, task))

	got, err := store.Get(ctx, task.ID)
	require.NoError(t, err)
	got.Title = "mutated by caller"

	again, err := store.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "isolated", again.Title)
}

func TestTaskStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	older := newTask("older", 1)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTask("newer", 1)
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "newer", tasks[0].Title)
}

func TestActionStoreRecent(t *testing.T) {
	ctx := context.Background()
	store := NewActionStore()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &models.Action{
			ID:         uuid.New(),
			UserID:     uuid.New(),
			ActionType: models.ActionUpdate,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp))
	assert.True(t, recent[1].Timestamp.After(recent[2].Timestamp))
}

func TestUserStoreCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	store.Add(&models.User{ID: uuid.New(), Username: "zoe"})
	store.Add(&models.User{ID: uuid.New(), Username: "amy"})
	store.Add(&models.User{ID: uuid.New(), Username: "mia"})

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "amy", users[0].Username)
	assert.Equal(t, "mia", users[1].Username)
	assert.Equal(t, "zoe", users[2].Username)
}

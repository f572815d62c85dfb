package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncboard/syncboard/internal/repository/memory"
	"github.com/syncboard/syncboard/pkg/models"
)

func TestLeastLoadedStrategy(t *testing.T) {
	ctx := context.Background()
	strategy := &LeastLoadedStrategy{}

	u := func(name string) *models.User {
		return &models.User{ID: uuid.New(), Username: name}
	}

	t.Run("picks strict minimum", func(t *testing.T) {
		chosen, err := strategy.Pick(ctx, []UserLoad{
			{User: u("alice"), ActiveTasks: 2},
			{User: u("bob"), ActiveTasks: 0},
			{User: u("carol"), ActiveTasks: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", chosen.Username)
	})

	t.Run("tie breaks toward first candidate", func(t *testing.T) {
		chosen, err := strategy.Pick(ctx, []UserLoad{
			{User: u("alice"), ActiveTasks: 1},
			{User: u("bob"), ActiveTasks: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", chosen.Username)
	})

	t.Run("no candidates fails closed", func(t *testing.T) {
		_, err := strategy.Pick(ctx, nil)
		require.ErrorIs(t, err, ErrNoUsers)
	})
}

func TestAssignmentBalancerCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	tasks := memory.NewTaskStore()

	// Insertion order deliberately differs from username order; the
	// balancer must see the canonical listing.
	zoe := &models.User{ID: uuid.New(), Username: "zoe"}
	amy := &models.User{ID: uuid.New(), Username: "amy"}
	users.Add(zoe)
	users.Add(amy)

	balancer := NewAssignmentBalancer(users, tasks)
	chosen, count, err := balancer.PickAssignee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "amy", chosen.Username)
	assert.Equal(t, 0, count)
}

func TestAssignmentBalancerCountsOnlyActiveTasks(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	tasks := memory.NewTaskStore()

	amy := &models.User{ID: uuid.New(), Username: "amy"}
	bea := &models.User{ID: uuid.New(), Username: "bea"}
	users.Add(amy)
	users.Add(bea)

	seed := []struct {
		assignee uuid.UUID
		status   models.TaskStatus
	}{
		{amy.ID, models.TaskStatusDone},
		{amy.ID, models.TaskStatusDone},
		{bea.ID, models.TaskStatusTodo},
	}
	for i, s := range seed {
		assignee := s.assignee
		require.NoError(t, tasks.Create(ctx, &models.Task{
			ID: uuid.New(), Title: string(rune('a' + i)), Status: s.status,
			Priority: models.TaskPriorityMedium, AssignedTo: &assignee,
			CreatedBy: amy.ID, Version: 1,
		}))
	}

	balancer := NewAssignmentBalancer(users, tasks)
	chosen, count, err := balancer.PickAssignee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "amy", chosen.Username, "done tasks do not count toward load")
	assert.Equal(t, 0, count)
}

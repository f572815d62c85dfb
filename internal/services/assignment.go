package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
)

// UserLoad pairs a user with their count of active (non-Done) assigned
// tasks.
type UserLoad struct {
	User        *models.User
	ActiveTasks int
}

// AssignmentStrategy selects an assignee from a canonically ordered
// candidate list.
type AssignmentStrategy interface {
	Pick(ctx context.Context, candidates []UserLoad) (*models.User, error)
	Name() string
}

// LeastLoadedStrategy picks the user with the strict minimum of active
// tasks. Ties break toward the first candidate in the list, which the
// balancer supplies in canonical user order.
type LeastLoadedStrategy struct{}

func (s *LeastLoadedStrategy) Pick(ctx context.Context, candidates []UserLoad) (*models.User, error) {
	if len(candidates) == 0 {
		return nil, ErrNoUsers
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ActiveTasks < best.ActiveTasks {
			best = c
		}
	}
	return best.User, nil
}

func (s *LeastLoadedStrategy) Name() string { return "least_loaded" }

// AssignmentBalancer computes per-user load and delegates assignee
// selection to a strategy.
type AssignmentBalancer struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	strategy AssignmentStrategy
}

// NewAssignmentBalancer creates a balancer with the least-loaded strategy.
func NewAssignmentBalancer(users repository.UserRepository, tasks repository.TaskRepository) *AssignmentBalancer {
	return &AssignmentBalancer{
		users:    users,
		tasks:    tasks,
		strategy: &LeastLoadedStrategy{},
	}
}

// PickAssignee returns the least-loaded user and their active-task count.
// Fails closed with ErrNoUsers when no users exist.
func (b *AssignmentBalancer) PickAssignee(ctx context.Context) (*models.User, int, error) {
	users, err := b.users.List(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	if len(users) == 0 {
		return nil, 0, ErrNoUsers
	}

	counts, err := b.tasks.CountActiveByAssignee(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count active tasks")
	}

	candidates := make([]UserLoad, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, UserLoad{User: u, ActiveTasks: counts[u.ID]})
	}

	chosen, err := b.strategy.Pick(ctx, candidates)
	if err != nil {
		return nil, 0, err
	}
	return chosen, counts[chosen.ID], nil
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
)

// Populator performs the read-side join from user ids to usernames. It is
// a read-path concern only: records never carry denormalized names.
type Populator struct {
	users repository.UserRepository
	cache *lru.Cache[uuid.UUID, models.UserRef]
}

// NewPopulator creates a populator with a bounded username cache.
func NewPopulator(users repository.UserRepository) *Populator {
	cache, _ := lru.New[uuid.UUID, models.UserRef](1024)
	return &Populator{users: users, cache: cache}
}

func (p *Populator) ref(ctx context.Context, id *uuid.UUID) *models.UserRef {
	if id == nil {
		return nil
	}
	if ref, ok := p.cache.Get(*id); ok {
		out := ref
		return &out
	}
	user, err := p.users.Get(ctx, *id)
	if err != nil {
		// A dangling reference is presented as id-only rather than failing
		// the whole read.
		return &models.UserRef{ID: *id}
	}
	ref := user.Ref()
	p.cache.Add(*id, ref)
	out := ref
	return &out
}

// UserRef resolves one user id to its display identity. Unknown ids
// return an error rather than the id-only fallback used on read paths.
func (p *Populator) UserRef(ctx context.Context, id uuid.UUID) (*models.UserRef, error) {
	if ref, ok := p.cache.Get(id); ok {
		out := ref
		return &out, nil
	}
	user, err := p.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := user.Ref()
	p.cache.Add(id, ref)
	return &ref, nil
}

// TaskView resolves the task's user references. An expired edit lease is
// presented as unlocked so clients never see a stale holder.
func (p *Populator) TaskView(ctx context.Context, task *models.Task) *models.TaskView {
	view := &models.TaskView{
		ID:           task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Priority:     task.Priority,
		AssignedTo:   p.ref(ctx, task.AssignedTo),
		CreatedBy:    p.ref(ctx, &task.CreatedBy),
		LastEditedBy: p.ref(ctx, task.LastEditedBy),
		CreatedAt:    task.CreatedAt,
		LastEditedAt: task.LastEditedAt,
		Version:      task.Version,
	}
	if holder := task.LockedBy(time.Now()); holder != nil {
		view.IsBeingEdited = true
		view.EditingBy = p.ref(ctx, holder)
		view.EditingExpiresAt = task.EditingExpiresAt
	}
	return view
}

// TaskViews resolves a list of tasks.
func (p *Populator) TaskViews(ctx context.Context, tasks []*models.Task) []*models.TaskView {
	views := make([]*models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, p.TaskView(ctx, t))
	}
	return views
}

// ActionView resolves an activity entry's user reference. The task
// reference title comes from the details map, which captured it at commit
// time; deleted tasks therefore keep their title in the feed.
func (p *Populator) ActionView(ctx context.Context, action *models.Action) *models.ActionView {
	view := &models.ActionView{
		ID:         action.ID,
		User:       p.ref(ctx, &action.UserID),
		ActionType: action.ActionType,
		Details:    action.Details,
		Timestamp:  action.Timestamp,
	}
	if action.TaskID != nil {
		ref := &models.TaskRef{ID: *action.TaskID}
		if title, ok := action.Details["task"].(string); ok {
			ref.Title = title
		}
		view.Task = ref
	}
	return view
}

// ActionViews resolves a list of activity entries.
func (p *Populator) ActionViews(ctx context.Context, actions []*models.Action) []*models.ActionView {
	views := make([]*models.ActionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, p.ActionView(ctx, a))
	}
	return views
}

// InvalidateUser drops a user's cached ref, e.g. after a username change.
func (p *Populator) InvalidateUser(id uuid.UUID) {
	p.cache.Remove(id)
}

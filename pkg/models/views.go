package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskView is a task with its user references denormalized to usernames.
// The join happens on the read path; mutation code never writes usernames
// into the record.
type TaskView struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`

	AssignedTo   *UserRef `json:"assignedTo,omitempty"`
	CreatedBy    *UserRef `json:"createdBy,omitempty"`
	LastEditedBy *UserRef `json:"lastEditedBy,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastEditedAt time.Time `json:"lastEditedAt"`

	Version int `json:"version"`

	IsBeingEdited    bool       `json:"isBeingEdited"`
	EditingBy        *UserRef   `json:"editingBy,omitempty"`
	EditingExpiresAt *time.Time `json:"editingExpiresAt,omitempty"`
}

// TaskRef is the denormalized task reference attached to activity entries.
type TaskRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// ActionView is an activity entry with user and task references resolved.
type ActionView struct {
	ID         uuid.UUID  `json:"id"`
	User       *UserRef   `json:"user,omitempty"`
	Task       *TaskRef   `json:"taskId,omitempty"`
	ActionType ActionType `json:"actionType"`
	Details    JSONMap    `json:"details"`
	Timestamp  time.Time  `json:"timestamp"`
}

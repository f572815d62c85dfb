package models

import (
	"time"

	"github.com/google/uuid"
)

// Task represents a unit of work on the shared board.
type Task struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description,omitempty" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    TaskPriority `json:"priority" db:"priority"`

	// User relationships
	AssignedTo   *uuid.UUID `json:"assignedTo,omitempty" db:"assigned_to"`
	CreatedBy    uuid.UUID  `json:"createdBy" db:"created_by"`
	LastEditedBy *uuid.UUID `json:"lastEditedBy,omitempty" db:"last_edited_by"`

	// Timestamps
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	LastEditedAt time.Time `json:"lastEditedAt" db:"last_edited_at"`

	// Optimistic locking
	Version int `json:"version" db:"version"`

	// Edit lease. IsBeingEdited is true iff EditingBy and EditingExpiresAt
	// are both set.
	IsBeingEdited    bool       `json:"isBeingEdited" db:"is_being_edited"`
	EditingBy        *uuid.UUID `json:"editingBy,omitempty" db:"editing_by"`
	EditingExpiresAt *time.Time `json:"editingExpiresAt,omitempty" db:"editing_expires_at"`
}

// TaskStatus represents the board column a task sits in.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// ReservedTitles are the column names a task title may never collide with.
var ReservedTitles = []string{
	string(TaskStatusTodo),
	string(TaskStatusInProgress),
	string(TaskStatusDone),
}

// IsReservedTitle reports whether title matches a board column name.
// The comparison is case-sensitive, matching the original board rules.
func IsReservedTitle(title string) bool {
	for _, r := range ReservedTitles {
		if title == r {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is one of the known board columns.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// IsActive reports whether the task counts toward a user's load for
// smart assignment. Done tasks are terminal and do not count.
func (t *Task) IsActive() bool {
	return t.Status != TaskStatusDone
}

// LockedBy returns the holder of a live edit lease, or nil when the task
// is unlocked or the lease has expired at the given instant.
func (t *Task) LockedBy(now time.Time) *uuid.UUID {
	if !t.IsBeingEdited || t.EditingBy == nil {
		return nil
	}
	if t.EditingExpiresAt != nil && now.After(*t.EditingExpiresAt) {
		return nil
	}
	return t.EditingBy
}

// ClearLock removes the edit lease, restoring the unlocked invariant.
func (t *Task) ClearLock() {
	t.IsBeingEdited = false
	t.EditingBy = nil
	t.EditingExpiresAt = nil
}

// SetLock installs an edit lease held by userID until expires.
func (t *Task) SetLock(userID uuid.UUID, expires time.Time) {
	t.IsBeingEdited = true
	t.EditingBy = &userID
	t.EditingExpiresAt = &expires
}

// TaskPatch carries the client-editable fields of an update request.
// Empty fields keep the current value, matching the original wire contract.
type TaskPatch struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssignedTo  *uuid.UUID   `json:"assignedTo"`
}

package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/pkg/models"
)

// Service errors. Handlers map these onto the HTTP surface.
var (
	ErrNotFound  = errors.New("task not found")
	ErrForbidden = errors.New("not the lock holder")
	ErrNoUsers   = errors.New("no users available for assignment")
)

// DuplicateTitleError is returned when a title collides with another task.
type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("task title %q must be unique", e.Title)
}

// ReservedTitleError is returned when a title matches a board column name.
type ReservedTitleError struct {
	Title string
}

func (e *ReservedTitleError) Error() string {
	return fmt.Sprintf("task title %q cannot match a column name", e.Title)
}

// ConflictError is returned when a write collides with another user's edit
// lease or a stale version. Current carries the server-side record so the
// client has ground truth for resolution.
type ConflictError struct {
	TaskID    uuid.UUID
	Holder    *uuid.UUID
	ExpiresAt *time.Time
	Current   *models.TaskView
}

func (e *ConflictError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("task %s is being edited by another user", e.TaskID)
	}
	return fmt.Sprintf("task %s was modified concurrently", e.TaskID)
}

// ValidationError is returned for malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

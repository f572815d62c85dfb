package models

import "github.com/google/uuid"

// Broadcast event names published to every connected client. The wire
// format matches the original board protocol so existing clients keep
// working.
const (
	EventTaskCreated  = "taskCreated"
	EventTaskUpdated  = "taskUpdated"
	EventTaskDeleted  = "taskDeleted"
	EventTaskLocked   = "taskLocked"
	EventTaskUnlocked = "taskUnlocked"
	EventActionLogged = "actionLogged"
	EventUserJoined   = "userJoined"
	EventUserLeft     = "userLeft"
	EventActiveUsers  = "activeUsers"
)

// Inbound connection-scoped signals.
const (
	SignalUserLogin    = "userLogin"
	SignalStartEditing = "startEditing"
	SignalStopEditing  = "stopEditing"
)

// TaskLockedPayload announces an edit lease to other clients.
type TaskLockedPayload struct {
	TaskID uuid.UUID `json:"taskId"`
	User   UserRef   `json:"user"`
}

// TaskUnlockedPayload announces a released lease.
type TaskUnlockedPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

// TaskDeletedPayload carries the id of a removed task.
type TaskDeletedPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

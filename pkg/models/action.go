package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action is one append-only activity log entry. Actions are immutable
// once recorded.
type Action struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user" db:"user_id"`
	TaskID     *uuid.UUID `json:"taskId,omitempty" db:"task_id"`
	ActionType ActionType `json:"actionType" db:"action_type"`
	Details    JSONMap    `json:"details" db:"details"`
	Timestamp  time.Time  `json:"timestamp" db:"timestamp"`
}

// ActionType classifies a committed board action.
type ActionType string

const (
	ActionCreate          ActionType = "create"
	ActionUpdate          ActionType = "update"
	ActionDelete          ActionType = "delete"
	ActionAssign          ActionType = "assign"
	ActionMove            ActionType = "move"
	ActionResolveConflict ActionType = "resolve_conflict"
)

// RecentActionLimit bounds the live activity feed. The store keeps full
// history; only the feed is truncated.
const RecentActionLimit = 20

// JSONMap is a map[string]interface{} that implements sql.Scanner and
// driver.Valuer so action details round-trip through a jsonb column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONMap.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*map[string]interface{})(m))
	case string:
		return json.Unmarshal([]byte(v), (*map[string]interface{})(m))
	default:
		return json.Unmarshal([]byte(v.(string)), (*map[string]interface{})(m))
	}
}

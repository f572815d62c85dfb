package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsReservedTitle(t *testing.T) {
	assert.True(t, IsReservedTitle("Todo"))
	assert.True(t, IsReservedTitle("In Progress"))
	assert.True(t, IsReservedTitle("Done"))

	assert.False(t, IsReservedTitle("todo"))
	assert.False(t, IsReservedTitle("DONE"))
	assert.False(t, IsReservedTitle("In progress"))
	assert.False(t, IsReservedTitle("Backlog"))
}

func TestLockedBy(t *testing.T) {
	now := time.Now()
	holder := uuid.New()

	var task Task
	assert.Nil(t, task.LockedBy(now))

	task.SetLock(holder, now.Add(time.Minute))
	got := task.LockedBy(now)
	if assert.NotNil(t, got) {
		assert.Equal(t, holder, *got)
	}

	assert.Nil(t, task.LockedBy(now.Add(2*time.Minute)), "past expiry the lease reads as absent")

	task.ClearLock()
	assert.Nil(t, task.LockedBy(now))
	assert.False(t, task.IsBeingEdited)
}

func TestIsActive(t *testing.T) {
	task := Task{Status: TaskStatusTodo}
	assert.True(t, task.IsActive())
	task.Status = TaskStatusInProgress
	assert.True(t, task.IsActive())
	task.Status = TaskStatusDone
	assert.False(t, task.IsActive())
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/services"
	"github.com/syncboard/syncboard/pkg/models"
)

// TaskAPI exposes the task operations over REST.
type TaskAPI struct {
	tasks *services.TaskService
}

func NewTaskAPI(tasks *services.TaskService) *TaskAPI {
	return &TaskAPI{tasks: tasks}
}

// RegisterRoutes mounts the task routes on an authenticated group.
func (a *TaskAPI) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/tasks", a.listTasks)
	group.POST("/tasks", a.createTask)
	group.PUT("/tasks/:id", a.updateTask)
	group.DELETE("/tasks/:id", a.deleteTask)
	group.POST("/tasks/:id/start-editing", a.startEditing)
	group.POST("/tasks/:id/cancel-editing", a.cancelEditing)
	group.PUT("/tasks/:id/resolve-conflict", a.resolveConflict)
	group.POST("/tasks/:id/smart-assign", a.smartAssign)
}

func (a *TaskAPI) listTasks(c *gin.Context) {
	views, err := a.tasks.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (a *TaskAPI) createTask(c *gin.Context) {
	var input services.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	view, err := a.tasks.Create(c.Request.Context(), userID(c), input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (a *TaskAPI) updateTask(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	view, err := a.tasks.Update(c.Request.Context(), taskID, userID(c), patch)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *TaskAPI) deleteTask(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	if err := a.tasks.Delete(c.Request.Context(), taskID, userID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (a *TaskAPI) startEditing(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	view, err := a.tasks.StartEditing(c.Request.Context(), taskID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *TaskAPI) cancelEditing(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	view, err := a.tasks.CancelEditing(c.Request.Context(), taskID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type resolveConflictRequest struct {
	Resolution string           `json:"resolution"`
	Patch      models.TaskPatch `json:"task"`
}

func (a *TaskAPI) resolveConflict(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	view, err := a.tasks.ResolveConflict(c.Request.Context(), taskID, userID(c), services.Resolution(req.Resolution), req.Patch)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *TaskAPI) smartAssign(c *gin.Context) {
	taskID, ok := pathTaskID(c)
	if !ok {
		return
	}
	view, message, err := a.tasks.SmartAssign(c.Request.Context(), taskID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": view, "message": message})
}

func pathTaskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid task id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	var (
		conflict   *services.ConflictError
		duplicate  *services.DuplicateTitleError
		reserved   *services.ReservedTitleError
		validation *services.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		body := gin.H{
			"message":        conflict.Error(),
			"conflict":       true,
			"currentVersion": conflict.Current,
		}
		if conflict.Holder != nil {
			body["lockedBy"] = conflict.Holder
			body["lockExpiresAt"] = conflict.ExpiresAt
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &duplicate):
		c.JSON(http.StatusBadRequest, gin.H{"message": duplicate.Error()})
	case errors.As(err, &reserved):
		c.JSON(http.StatusBadRequest, gin.H{"message": reserved.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"message": validation.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "Only the editing user can release the lock"})
	case errors.Is(err, services.ErrNoUsers):
		c.JSON(http.StatusConflict, gin.H{"message": "No users available for assignment"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

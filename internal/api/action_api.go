package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncboard/syncboard/internal/services"
)

// ActionAPI serves the recent activity feed.
type ActionAPI struct {
	tasks *services.TaskService
}

func NewActionAPI(tasks *services.TaskService) *ActionAPI {
	return &ActionAPI{tasks: tasks}
}

func (a *ActionAPI) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/actions/recent", a.recentActions)
}

func (a *ActionAPI) recentActions(c *gin.Context) {
	views, err := a.tasks.RecentActivity(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

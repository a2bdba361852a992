package task

import (
	"taskflow-api/core/middleware"
	"taskflow-api/modules/task/controller"
	"taskflow-api/modules/task/repository"
	"taskflow-api/modules/task/router"
	"taskflow-api/modules/task/service"

	"github.com/labstack/echo/v4"
)

// Init registers the task routes. pusher may be nil when calendar push is disabled.
func Init(e *echo.Echo, repo *repository.TaskRepository, mw *middleware.Middleware, pusher service.CalendarPusher) *service.TaskService {
	svc := service.NewTaskService(repo, pusher)
	ctrl := controller.NewTaskController(svc)
	router.NewTaskRouter(ctrl).Setup(e, mw)
	return svc
}

package router

import (
	"taskflow-api/core/middleware"
	"taskflow-api/modules/task/controller"

	"github.com/labstack/echo/v4"
)

type TaskRouter struct {
	controller *controller.TaskController
}

func NewTaskRouter(controller *controller.TaskController) *TaskRouter {
	return &TaskRouter{controller: controller}
}

func (r *TaskRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	tasks := e.Group("/api/v1/private/tasks", mw.AuthMiddleware())
	tasks.POST("", r.controller.CreateTask)
	tasks.GET("/:id", r.controller.GetTask)
	tasks.PUT("/:id", r.controller.UpdateTask)
}

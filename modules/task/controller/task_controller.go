package controller

import (
	"taskflow-api/core/controller"
	"taskflow-api/core/errors"
	"taskflow-api/core/middleware"
	"taskflow-api/modules/task/dto"
	"taskflow-api/modules/task/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type TaskController struct {
	service service.TaskServiceInterface
	controller.BaseController
}

func NewTaskController(service service.TaskServiceInterface) *TaskController {
	return &TaskController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// CreateTask creates a task owned by the caller
// POST /api/v1/private/tasks
func (c *TaskController) CreateTask(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.CreateTaskRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	result, appErr := c.service.CreateTask(ctx.Request().Context(), userID, req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.CreatedResponse(ctx, result, "Task created successfully")
}

// GetTask returns one task
// GET /api/v1/private/tasks/:id
func (c *TaskController) GetTask(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid task id")
	}

	result, appErr := c.service.GetTask(ctx.Request().Context(), id, userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Task retrieved successfully")
}

// UpdateTask applies a partial update
// PUT /api/v1/private/tasks/:id
func (c *TaskController) UpdateTask(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid task id")
	}

	req := new(dto.UpdateTaskRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	result, appErr := c.service.UpdateTask(ctx.Request().Context(), id, userID, req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Task updated successfully")
}

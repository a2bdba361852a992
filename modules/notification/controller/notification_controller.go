package controller

import (
	"strconv"

	"taskflow-api/core/controller"
	"taskflow-api/core/errors"
	"taskflow-api/core/middleware"
	"taskflow-api/modules/notification/service"

	"github.com/labstack/echo/v4"
)

type NotificationController struct {
	service *service.NotificationService
	controller.BaseController
}

func NewNotificationController(service *service.NotificationService) *NotificationController {
	return &NotificationController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// GetMyNotifications lists the caller's notifications, newest first
// GET /api/v1/private/notifications?limit=&offset=
func (c *NotificationController) GetMyNotifications(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ := strconv.Atoi(ctx.QueryParam("offset"))

	result, err := c.service.GetMyNotifications(ctx.Request().Context(), userID, limit, offset)
	if err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "Failed to get notifications")
	}
	return c.SuccessResponse(ctx, result, "Notifications retrieved successfully")
}

// MarkAllAsRead
// PUT /api/v1/private/notifications/mark-all-read
func (c *NotificationController) MarkAllAsRead(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	if err := c.service.MarkAllAsRead(ctx.Request().Context(), userID); err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "Failed to mark all as read")
	}
	return c.SuccessResponse(ctx, nil, "All marked as read successfully")
}

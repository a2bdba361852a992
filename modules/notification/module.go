package notification

import (
	"taskflow-api/core/database"
	"taskflow-api/core/middleware"
	"taskflow-api/modules/notification/controller"
	"taskflow-api/modules/notification/repository"
	"taskflow-api/modules/notification/router"
	"taskflow-api/modules/notification/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db database.IDatabase, mw *middleware.Middleware) *service.NotificationService {
	repo := repository.NewNotificationRepository(db)
	svc := service.NewNotificationService(repo)
	ctrl := controller.NewNotificationController(svc)

	router.NewNotificationRouter(ctrl).Register(e, mw)

	return svc
}

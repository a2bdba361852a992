package router

import (
	"taskflow-api/core/middleware"
	"taskflow-api/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{
		controller: controller,
	}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	calendarRoutes := e.Group("/api/v1/private/calendar")
	calendarRoutes.Use(mw.AuthMiddleware())

	calendarRoutes.POST("/sync", r.controller.ManualSync)
	calendarRoutes.GET("/sync/status", r.controller.SyncStatus)
	calendarRoutes.GET("/calendars", r.controller.ListCalendars)
	calendarRoutes.GET("/google/connect", r.controller.ConnectGoogle)

	publicRoutes := e.Group("/api/v1/public/calendar")
	publicRoutes.GET("/google/callback", r.controller.GoogleCallback)
}

package router

import (
	"smartschedule/modules/calendar/controller"

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

func (r *CalendarRouter) Setup(e *echo.Echo, auth echo.MiddlewareFunc) {
	v1 := e.Group("/api/v1")

	// Handshake callback runs in the provider popup without our bearer token
	v1.GET("/public/calendar/oauth/callback", r.controller.OAuthCallback)

	calendarRoutes := v1.Group("/private/calendar")
	calendarRoutes.Use(auth)

	// Calendar connections
	calendarRoutes.GET("/connections", r.controller.GetConnections)
	calendarRoutes.DELETE("/connections/:id", r.controller.DisconnectCalendar)
	calendarRoutes.GET("/oauth/url", r.controller.OAuthURL)

	// Sync
	calendarRoutes.POST("/sync", r.controller.Sync)

	// Events
	calendarRoutes.POST("/events", r.controller.MutateEvent)

	// Availability
	calendarRoutes.GET("/availability", r.controller.GetAvailability)
	calendarRoutes.GET("/busy", r.controller.GetBusy)
}

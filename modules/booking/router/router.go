package router

import (
	"smartschedule/modules/booking/controller"

	"github.com/labstack/echo/v4"
)

type BookingRouter struct {
	Controller *controller.BookingController
}

func NewBookingRouter(ctrl *controller.BookingController) *BookingRouter {
	return &BookingRouter{Controller: ctrl}
}

func (r *BookingRouter) Setup(e *echo.Echo, auth echo.MiddlewareFunc) {
	v1 := e.Group("/api/v1")
	priv := v1.Group("/private", auth)

	bookings := priv.Group("/bookings")
	bookings.POST("/:id/confirm-meeting", r.Controller.ConfirmMeeting)
}

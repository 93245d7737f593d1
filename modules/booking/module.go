package booking

import (
	"smartschedule/core/database"
	"smartschedule/core/middleware"
	"smartschedule/modules/booking/controller"
	"smartschedule/modules/booking/repository"
	"smartschedule/modules/booking/router"
	bookingService "smartschedule/modules/booking/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.IDatabase, meetings bookingService.MeetingScheduler) {
	bookingRepo := repository.NewBookingRepository(db)
	bookingSvc := bookingService.NewBookingService(bookingRepo, meetings)

	ctrl := controller.NewBookingController(bookingSvc)
	router.NewBookingRouter(ctrl).Setup(e, middleware.AuthMiddleware())
}

package controller

import (
	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/core/middleware"
	"smartschedule/modules/booking/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BookingController struct {
	controller.BaseController
	BookingService service.BookingService
}

func NewBookingController(bookingSvc service.BookingService) *BookingController {
	return &BookingController{
		BaseController: controller.NewBaseController(),
		BookingService: bookingSvc,
	}
}

// ConfirmMeeting schedules a booking on the host's calendar
// POST /api/v1/private/bookings/:id/confirm-meeting
func (b *BookingController) ConfirmMeeting(c echo.Context) error {
	hostID, appErr := middleware.GetUserID(c)
	if appErr != nil {
		return b.ErrorResponse(c, appErr)
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.ErrorResponse(c, errors.NewAppError(errors.ErrInvalidInput, "invalid booking id", err))
	}

	resp, err := b.BookingService.ConfirmMeeting(c.Request().Context(), hostID, bookingID)
	if err != nil {
		return b.ErrorResponse(c, err)
	}
	return b.SuccessResponse(c, resp, "Booking confirmed")
}

package service

import (
	"context"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/modules/booking/dto"
	"smartschedule/modules/booking/entity"
	"smartschedule/modules/booking/repository"
	calservice "smartschedule/modules/calendar/service"

	"github.com/google/uuid"
)

// MeetingScheduler creates the host-side calendar event for a booking.
type MeetingScheduler interface {
	ConfirmBookingMeeting(ctx context.Context, meeting calservice.BookingMeeting) (*calservice.MeetingResult, error)
}

type BookingService interface {
	ConfirmMeeting(ctx context.Context, hostID, bookingID uuid.UUID) (*dto.ConfirmMeetingResponse, error)
}

type bookingService struct {
	bookings repository.BookingRepository
	meetings MeetingScheduler
}

func NewBookingService(bookings repository.BookingRepository, meetings MeetingScheduler) BookingService {
	return &bookingService{bookings: bookings, meetings: meetings}
}

// ConfirmMeeting creates the booking's event on the host's calendar. The booking flips to
// confirmed once the provider returns a conference link; a skipped meeting leaves it untouched.
func (s *bookingService) ConfirmMeeting(ctx context.Context, hostID, bookingID uuid.UUID) (*dto.ConfirmMeetingResponse, error) {
	logger.Info("BookingService:ConfirmMeeting:Start", "booking_id", bookingID, "host_id", hostID)

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load booking", err)
	}
	if booking == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "booking not found", nil)
	}
	if booking.HostID == nil || *booking.HostID != hostID {
		return nil, errors.NewAppError(errors.ErrForbidden, "not authorized", nil)
	}
	if booking.StartDate == nil || booking.EndDate == nil || !booking.EndDate.After(*booking.StartDate) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "booking has no valid start/end", nil)
	}
	switch booking.Status {
	case entity.BookingStatusCancelled:
		return nil, errors.NewAppError(errors.ErrConflict, "booking is cancelled", nil)
	case entity.BookingStatusConfirmed:
		resp := &dto.ConfirmMeetingResponse{BookingID: booking.ID.String(), Status: string(booking.Status), MeetingStatus: string(calservice.MeetingStatusSkipped), Reason: "booking already confirmed"}
		if booking.MeetingLink != nil {
			resp.MeetingLink = *booking.MeetingLink
		}
		return resp, nil
	}

	if booking.ProviderEventID != nil && *booking.ProviderEventID != "" {
		// the host calendar already has this booking's event
		logger.Info("BookingService:ConfirmMeeting:AlreadyCreated", "booking_id", bookingID, "event_id", *booking.ProviderEventID)
		resp := &dto.ConfirmMeetingResponse{
			BookingID:     booking.ID.String(),
			Status:        string(booking.Status),
			MeetingStatus: string(calservice.MeetingStatusCreated),
			EventID:       *booking.ProviderEventID,
		}
		if booking.MeetingLink != nil {
			resp.MeetingLink = *booking.MeetingLink
		}
		return resp, nil
	}

	description := ""
	if booking.Description != nil {
		description = *booking.Description
	}
	result, err := s.meetings.ConfirmBookingMeeting(ctx, calservice.BookingMeeting{
		HostUserID:  hostID,
		GuestEmail:  booking.Guest().GuestEmail,
		Title:       booking.Title,
		Description: description,
		Start:       *booking.StartDate,
		End:         *booking.EndDate,
		TimeZone:    booking.Timezone,
	})
	if err != nil {
		logger.Error("BookingService:ConfirmMeeting:CalendarError", "booking_id", bookingID, "error", err)
		return nil, errors.NewAppError(errors.ErrCalendarProvider, "failed to create the calendar event", err)
	}

	resp := &dto.ConfirmMeetingResponse{
		BookingID:     booking.ID.String(),
		Status:        string(booking.Status),
		MeetingStatus: string(result.Status),
		MeetingLink:   result.MeetingLink,
		EventID:       result.EventID,
		Reason:        result.Reason,
	}
	if result.Status == calservice.MeetingStatusSkipped {
		logger.Warn("BookingService:ConfirmMeeting:Skipped", "booking_id", bookingID, "reason", result.Reason)
		return resp, nil
	}

	status := booking.Status
	var link *string
	if result.MeetingLink != "" {
		status = entity.BookingStatusConfirmed
		link = &result.MeetingLink
	}
	eventID := &result.EventID
	if err := s.bookings.UpdateMeeting(ctx, booking.ID, status, link, eventID); err != nil {
		logger.Error("BookingService:ConfirmMeeting:UpdateError", "booking_id", bookingID, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update booking", err)
	}
	resp.Status = string(status)

	logger.Info("BookingService:ConfirmMeeting:Success", "booking_id", bookingID, "status", status, "has_link", link != nil)
	return resp, nil
}

package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/utils"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/provider"
	"smartschedule/modules/calendar/repository"

	"github.com/google/uuid"
)

const defaultCalendarID = "primary"

type MeetingStatus string

const (
	MeetingStatusCreated MeetingStatus = "created"
	MeetingStatusSkipped MeetingStatus = "skipped"
)

// BookingMeeting describes the host-side event created when a booking is confirmed.
type BookingMeeting struct {
	HostUserID  uuid.UUID
	GuestEmail  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

type MeetingResult struct {
	Status      MeetingStatus `json:"status"`
	EventID     string        `json:"event_id,omitempty"`
	MeetingLink string        `json:"meeting_link,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

type EventService interface {
	Mutate(ctx context.Context, userID uuid.UUID, req *dto.EventMutationRequest) (*dto.EventResponse, error)
	CreateEvent(ctx context.Context, conn *entity.Connection, calendarID string, payload provider.EventPayload) (*provider.RawEvent, error)
	CreateFocusBlock(ctx context.Context, conn *entity.Connection, start, end time.Time, title string) (*provider.RawEvent, error)
	UpdateEvent(ctx context.Context, conn *entity.Connection, calendarID, eventID string, payload provider.EventPayload) (*provider.RawEvent, error)
	DeleteEvent(ctx context.Context, conn *entity.Connection, calendarID, eventID string) error
	ConfirmBookingMeeting(ctx context.Context, meeting BookingMeeting) (*MeetingResult, error)
}

type eventService struct {
	connections repository.ConnectionRepository
	events      repository.EventRepository
	credentials CredentialService
	client      provider.Client
}

func NewEventService(
	connections repository.ConnectionRepository,
	events repository.EventRepository,
	credentials CredentialService,
	client provider.Client,
) EventService {
	return &eventService{
		connections: connections,
		events:      events,
		credentials: credentials,
		client:      client,
	}
}

func calendarOrPrimary(calendarID string) string {
	if calendarID == "" {
		return defaultCalendarID
	}
	return calendarID
}

// mirror writes through to the local copy. Failures are logged only; the next sync repairs drift.
func (s *eventService) mirror(ctx context.Context, conn *entity.Connection, calendarID string, ev *provider.RawEvent, forceBusy bool) {
	row := toMirroredEvent(conn.ID, calendarID, *ev)
	if forceBusy {
		row.IsBusy = true
	}
	if err := s.events.Upsert(ctx, &row); err != nil {
		logger.Warn("EventService:Mirror:UpsertError", "connection_id", conn.ID, "event_id", ev.ID, "error", err)
	}
}

func (s *eventService) CreateEvent(ctx context.Context, conn *entity.Connection, calendarID string, payload provider.EventPayload) (*provider.RawEvent, error) {
	calendarID = calendarOrPrimary(calendarID)
	token, err := s.credentials.GetValidAccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreateEvent(ctx, token, calendarID, payload)
	if err != nil {
		logger.Error("EventService:CreateEvent:ProviderError", "connection_id", conn.ID, "calendar_id", calendarID, "error", err)
		return nil, err
	}

	s.mirror(ctx, conn, calendarID, created, false)
	logger.Info("EventService:CreateEvent:Success", "connection_id", conn.ID, "event_id", created.ID)
	return created, nil
}

// CreateFocusBlock creates a private, opaque event that blocks the time for other viewers.
func (s *eventService) CreateFocusBlock(ctx context.Context, conn *entity.Connection, start, end time.Time, title string) (*provider.RawEvent, error) {
	if !end.After(start) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "focus block must end after it starts", nil)
	}
	if title == "" {
		title = "Focus time"
	}

	token, err := s.credentials.GetValidAccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreateEvent(ctx, token, defaultCalendarID, provider.EventPayload{
		Title:        title,
		Start:        start,
		End:          end,
		TimeZone:     conn.Settings.Timezone,
		Visibility:   "private",
		Transparency: "opaque",
	})
	if err != nil {
		logger.Error("EventService:CreateFocusBlock:ProviderError", "connection_id", conn.ID, "error", err)
		return nil, err
	}

	s.mirror(ctx, conn, defaultCalendarID, created, true)
	logger.Info("EventService:CreateFocusBlock:Success", "connection_id", conn.ID, "event_id", created.ID)
	return created, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, conn *entity.Connection, calendarID, eventID string, payload provider.EventPayload) (*provider.RawEvent, error) {
	calendarID = calendarOrPrimary(calendarID)
	token, err := s.credentials.GetValidAccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	updated, err := s.client.UpdateEvent(ctx, token, calendarID, eventID, payload)
	if err != nil {
		logger.Error("EventService:UpdateEvent:ProviderError", "connection_id", conn.ID, "event_id", eventID, "error", err)
		return nil, err
	}

	s.mirror(ctx, conn, calendarID, updated, false)
	return updated, nil
}

// DeleteEvent removes the event at the provider; an already-deleted event counts as success.
func (s *eventService) DeleteEvent(ctx context.Context, conn *entity.Connection, calendarID, eventID string) error {
	calendarID = calendarOrPrimary(calendarID)
	token, err := s.credentials.GetValidAccessToken(ctx, conn)
	if err != nil {
		return err
	}

	if err := s.client.DeleteEvent(ctx, token, calendarID, eventID); err != nil {
		if !provider.IsGone(err) {
			logger.Error("EventService:DeleteEvent:ProviderError", "connection_id", conn.ID, "event_id", eventID, "error", err)
			return err
		}
		logger.Info("EventService:DeleteEvent:AlreadyDeleted", "connection_id", conn.ID, "event_id", eventID)
	}

	if err := s.events.DeleteByExternalID(ctx, conn.ID, eventID); err != nil {
		logger.Warn("EventService:Mirror:DeleteError", "connection_id", conn.ID, "event_id", eventID, "error", err)
	}
	return nil
}

// ConfirmBookingMeeting creates the meeting on the host's calendar with the guest invited.
// A host without a usable calendar gets a skipped result instead of an error.
func (s *eventService) ConfirmBookingMeeting(ctx context.Context, meeting BookingMeeting) (*MeetingResult, error) {
	conn, err := s.connections.GetByUserAndProvider(ctx, meeting.HostUserID, entity.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		logger.Info("EventService:ConfirmBookingMeeting:Skipped", "host_user_id", meeting.HostUserID, "reason", "no calendar connected")
		return &MeetingResult{Status: MeetingStatusSkipped, Reason: "host has no calendar connected"}, nil
	}

	var attendees []string
	if meeting.GuestEmail != "" {
		attendees = []string{meeting.GuestEmail}
	}
	timezone := meeting.TimeZone
	if timezone == "" {
		timezone = conn.Settings.Timezone
	}

	created, err := s.CreateEvent(ctx, conn, defaultCalendarID, provider.EventPayload{
		Title:               meeting.Title,
		Description:         meeting.Description,
		Start:               meeting.Start,
		End:                 meeting.End,
		TimeZone:            timezone,
		Attendees:           attendees,
		RequestConference:   true,
		ConferenceRequestID: utils.GenerateID(),
		SendUpdates:         true,
	})
	if err != nil {
		var authErr *AuthError
		if stderrors.As(err, &authErr) {
			logger.Warn("EventService:ConfirmBookingMeeting:Skipped", "host_user_id", meeting.HostUserID, "reason", authErr.Reason)
			return &MeetingResult{Status: MeetingStatusSkipped, Reason: "host calendar credentials are not valid"}, nil
		}
		return nil, err
	}

	return &MeetingResult{
		Status:      MeetingStatusCreated,
		EventID:     created.ID,
		MeetingLink: created.MeetingLink,
	}, nil
}

// Mutate dispatches a caller's event mutation against one of their connections.
func (s *eventService) Mutate(ctx context.Context, userID uuid.UUID, req *dto.EventMutationRequest) (*dto.EventResponse, error) {
	conn, err := s.connections.GetByID(ctx, req.ConnectionID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil || conn.UserID != userID {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}

	calendarID := calendarOrPrimary(req.CalendarID)

	switch req.Action {
	case dto.ActionCreate, dto.ActionCreateFocusBlock:
		start, end, appErr := parseRange(req.StartTime, req.EndTime, true)
		if appErr != nil {
			return nil, appErr
		}
		var ev *provider.RawEvent
		if req.Action == dto.ActionCreateFocusBlock {
			ev, err = s.CreateFocusBlock(ctx, conn, start, end, req.Title)
			calendarID = defaultCalendarID
		} else {
			if req.Title == "" {
				return nil, errors.NewAppError(errors.ErrInvalidInput, "title is required", nil)
			}
			ev, err = s.CreateEvent(ctx, conn, calendarID, payloadFrom(req, start, end, conn))
		}
		if err != nil {
			return nil, mapMutationError(err)
		}
		return eventResponse(calendarID, ev), nil

	case dto.ActionUpdate:
		if req.EventID == "" {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "event_id is required", nil)
		}
		start, end, appErr := parseRange(req.StartTime, req.EndTime, false)
		if appErr != nil {
			return nil, appErr
		}
		ev, err := s.UpdateEvent(ctx, conn, calendarID, req.EventID, payloadFrom(req, start, end, conn))
		if err != nil {
			return nil, mapMutationError(err)
		}
		return eventResponse(calendarID, ev), nil

	case dto.ActionDelete:
		if req.EventID == "" {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "event_id is required", nil)
		}
		if err := s.DeleteEvent(ctx, conn, calendarID, req.EventID); err != nil {
			return nil, mapMutationError(err)
		}
		return &dto.EventResponse{EventID: req.EventID, CalendarID: calendarID, Deleted: true}, nil

	default:
		return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("unsupported action %q", req.Action), nil)
	}
}

func parseRange(startStr, endStr string, required bool) (time.Time, time.Time, *errors.AppError) {
	var start, end time.Time
	if startStr == "" || endStr == "" {
		if required || startStr != endStr {
			return start, end, errors.NewAppError(errors.ErrInvalidInput, "start_time and end_time are required", nil)
		}
		return start, end, nil
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "invalid start_time format", err)
	}
	end, err = time.Parse(time.RFC3339, endStr)
	if err != nil {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "invalid end_time format", err)
	}
	if !end.After(start) {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "end_time must be after start_time", nil)
	}
	return start, end, nil
}

func payloadFrom(req *dto.EventMutationRequest, start, end time.Time, conn *entity.Connection) provider.EventPayload {
	tz := req.Timezone
	if tz == "" {
		tz = conn.Settings.Timezone
	}
	return provider.EventPayload{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       start,
		End:         end,
		TimeZone:    tz,
		Attendees:   req.Attendees,
		SendUpdates: len(req.Attendees) > 0,
	}
}

func eventResponse(calendarID string, ev *provider.RawEvent) *dto.EventResponse {
	return &dto.EventResponse{
		EventID:     ev.ID,
		CalendarID:  calendarID,
		Title:       ev.Title,
		StartTime:   ev.Start,
		EndTime:     ev.End,
		Status:      ev.Status,
		MeetingLink: ev.MeetingLink,
	}
}

// mapMutationError converts gateway failures to application errors for the HTTP layer.
func mapMutationError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return errors.NewAppError(errors.ErrCalendarAuth, "calendar credentials are no longer valid, reconnect the calendar", err)
	}
	var providerErr *provider.ProviderError
	if stderrors.As(err, &providerErr) {
		if providerErr.StatusCode == 404 {
			return errors.NewAppError(errors.ErrNotFound, "event not found", err)
		}
		return errors.NewAppError(errors.ErrCalendarProvider, "calendar provider rejected the request", err)
	}
	return errors.NewAppError(errors.ErrInternalServer, "calendar operation failed", err)
}

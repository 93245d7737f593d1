package service

import (
	"context"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/modules/calendar/availability"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/repository"

	"github.com/google/uuid"
)

const (
	dateLayout              = "2006-01-02"
	defaultMinGapMinutes    = 30
	defaultSlotDurationMins = 30
)

type AvailabilitySettings struct {
	WorkdayStartHour int
	WorkdayEndHour   int
	DefaultTimezone  string
}

type AvailabilityService interface {
	DayAvailability(ctx context.Context, userID uuid.UUID, req *dto.AvailabilityRequest) (*dto.AvailabilityResponse, error)
	IsBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) (*dto.BusyResponse, error)
}

type availabilityService struct {
	connections repository.ConnectionRepository
	events      repository.EventRepository
	resolver    *availability.Resolver
	settings    AvailabilitySettings
	now         func() time.Time
}

func NewAvailabilityService(
	connections repository.ConnectionRepository,
	events repository.EventRepository,
	resolver *availability.Resolver,
	settings AvailabilitySettings,
	now func() time.Time,
) AvailabilityService {
	if resolver == nil {
		resolver = availability.NewResolver(availability.DefaultStepMinutes)
	}
	if settings.WorkdayEndHour <= settings.WorkdayStartHour {
		settings.WorkdayStartHour, settings.WorkdayEndHour = 9, 18
	}
	if settings.DefaultTimezone == "" {
		settings.DefaultTimezone = "UTC"
	}
	if now == nil {
		now = time.Now
	}
	return &availabilityService{
		connections: connections,
		events:      events,
		resolver:    resolver,
		settings:    settings,
		now:         now,
	}
}

func (s *availabilityService) userConnections(ctx context.Context, userID uuid.UUID) ([]entity.Connection, error) {
	conns, err := s.connections.ListByUser(ctx, userID, entity.ProviderGoogle)
	if err != nil {
		logger.Error("AvailabilityService:ListConnections:Error", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load calendar connections", err)
	}
	return conns, nil
}

func (s *availabilityService) DayAvailability(ctx context.Context, userID uuid.UUID, req *dto.AvailabilityRequest) (*dto.AvailabilityResponse, error) {
	conns, err := s.userConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	tzName := req.Timezone
	if tzName == "" {
		for _, c := range conns {
			if c.Settings.Timezone != "" {
				tzName = c.Settings.Timezone
				break
			}
		}
	}
	if tzName == "" {
		tzName = s.settings.DefaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid timezone", err)
	}

	day := s.now().In(loc)
	if req.Date != "" {
		day, err = time.ParseInLocation(dateLayout, req.Date, loc)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "date must be YYYY-MM-DD", err)
		}
	}

	startHour, endHour := s.settings.WorkdayStartHour, s.settings.WorkdayEndHour
	if req.DayStartHour != nil {
		startHour = *req.DayStartHour
	}
	if req.DayEndHour != nil {
		endHour = *req.DayEndHour
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "day_start_hour must be before day_end_hour within 0-24", nil)
	}

	minGap := req.MinGapMinutes
	if minGap <= 0 {
		minGap = defaultMinGapMinutes
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = defaultSlotDurationMins
	}

	window := availability.Window(day, startHour, endHour)
	busy, err := s.busyIntervals(ctx, conns, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	return &dto.AvailabilityResponse{
		Date:      day.Format(dateLayout),
		Timezone:  loc.String(),
		Busy:      toSlots(availability.Merge(busy)),
		Gaps:      toSlots(s.resolver.FindGaps(busy, day, startHour, endHour, minGap)),
		FreeSlots: toSlots(s.resolver.FindFreeSlots(busy, day, duration, startHour, endHour)),
	}, nil
}

// busyIntervals loads mirrored events around [start, end) and pads each by its connection's buffer.
func (s *availabilityService) busyIntervals(ctx context.Context, conns []entity.Connection, start, end time.Time) ([]availability.Interval, error) {
	if len(conns) == 0 {
		return []availability.Interval{}, nil
	}

	ids := make([]uuid.UUID, 0, len(conns))
	buffers := make(map[uuid.UUID]time.Duration, len(conns))
	var maxBuffer time.Duration
	for _, c := range conns {
		ids = append(ids, c.ID)
		b := time.Duration(c.Settings.BufferMinutes) * time.Minute
		buffers[c.ID] = b
		if b > maxBuffer {
			maxBuffer = b
		}
	}

	events, err := s.events.ListBusyBetween(ctx, ids, start.Add(-maxBuffer), end.Add(maxBuffer))
	if err != nil {
		logger.Error("AvailabilityService:BusyIntervals:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load busy events", err)
	}

	byConn := make(map[uuid.UUID][]entity.MirroredEvent)
	for _, ev := range events {
		byConn[ev.ConnectionID] = append(byConn[ev.ConnectionID], ev)
	}
	intervals := []availability.Interval{}
	for connID, evs := range byConn {
		intervals = append(intervals, availability.BusyIntervals(evs, buffers[connID])...)
	}
	return intervals, nil
}

func (s *availabilityService) IsBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) (*dto.BusyResponse, error) {
	if !end.After(start) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "end_time must be after start_time", nil)
	}
	conns, err := s.userConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return &dto.BusyResponse{Busy: false, Events: []dto.TimeSlot{}}, nil
	}

	ids := make([]uuid.UUID, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}
	events, err := s.events.ListBusyBetween(ctx, ids, start, end)
	if err != nil {
		logger.Error("AvailabilityService:IsBusy:Error", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load busy events", err)
	}

	overlapping := []dto.TimeSlot{}
	for _, ev := range events {
		if ev.IsBusy && ev.StartTime.Before(end) && ev.EndTime.After(start) {
			overlapping = append(overlapping, dto.TimeSlot{Start: ev.StartTime, End: ev.EndTime})
		}
	}
	return &dto.BusyResponse{
		Busy:   availability.IsIntervalBusy(events, start, end),
		Events: overlapping,
	}, nil
}

func toSlots(intervals []availability.Interval) []dto.TimeSlot {
	slots := make([]dto.TimeSlot, 0, len(intervals))
	for _, i := range intervals {
		slots = append(slots, dto.TimeSlot{Start: i.Start, End: i.End})
	}
	return slots
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/storage"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/provider"
	"smartschedule/modules/calendar/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type SyncSettings struct {
	DefaultDays     int
	TrailingDays    int
	DefaultTimezone string
	// Timeout bounds one connection sync; it should not exceed the sync lock TTL.
	Timeout time.Duration
}

type SyncService interface {
	// SyncConnection refreshes the mirror of conn for [now-trailing, now+windowDays].
	SyncConnection(ctx context.Context, conn *entity.Connection, windowDays int) dto.SyncResult
	SyncConnectionByID(ctx context.Context, connectionID uuid.UUID, windowDays int) (dto.SyncResult, error)
	Sync(ctx context.Context, userID uuid.UUID, req *dto.SyncRequest) (*dto.SyncResponse, error)
}

type syncService struct {
	connections repository.ConnectionRepository
	events      repository.EventRepository
	credentials CredentialService
	client      provider.Client
	locker      SyncLocker
	archive     storage.Archive
	settings    SyncSettings
	now         func() time.Time
}

func NewSyncService(
	connections repository.ConnectionRepository,
	events repository.EventRepository,
	credentials CredentialService,
	client provider.Client,
	locker SyncLocker,
	archive storage.Archive,
	settings SyncSettings,
	now func() time.Time,
) SyncService {
	if settings.DefaultDays <= 0 {
		settings.DefaultDays = 30
	}
	if settings.TrailingDays < 0 {
		settings.TrailingDays = 0
	}
	if settings.DefaultTimezone == "" {
		settings.DefaultTimezone = "UTC"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &syncService{
		connections: connections,
		events:      events,
		credentials: credentials,
		client:      client,
		locker:      locker,
		archive:     archive,
		settings:    settings,
		now:         now,
	}
}

func (s *syncService) SyncConnection(ctx context.Context, conn *entity.Connection, windowDays int) dto.SyncResult {
	result := dto.SyncResult{ConnectionID: conn.ID}
	if windowDays <= 0 {
		windowDays = s.settings.DefaultDays
	}

	release, acquired, err := s.locker.Acquire(ctx, conn.ID)
	if err != nil {
		logger.Error("SyncService:SyncConnection:LockError", "connection_id", conn.ID, "error", err)
		result.Error = fmt.Sprintf("sync lock unavailable: %v", err)
		return result
	}
	if !acquired {
		logger.Info("SyncService:SyncConnection:AlreadyRunning", "connection_id", conn.ID)
		result.Error = ErrMsgSyncInProgress
		return result
	}
	defer release()

	// provider and mirror work must finish while the lock is still held
	workCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	logger.Info("SyncService:SyncConnection:Start", "connection_id", conn.ID, "user_id", conn.UserID, "window_days", windowDays)

	if err := s.connections.UpdateSyncStatus(ctx, conn.ID, entity.SyncStatusSyncing, conn.SyncError); err != nil {
		logger.Error("SyncService:SyncConnection:MarkSyncing", "connection_id", conn.ID, "error", err)
		result.Error = err.Error()
		return result
	}
	conn.SyncStatus = entity.SyncStatusSyncing

	token, err := s.credentials.GetValidAccessToken(workCtx, conn)
	if err != nil {
		// the credential service has already recorded the error on the connection
		result.Error = err.Error()
		return result
	}

	settings := conn.Settings
	settings.Timezone = s.resolveTimezone(workCtx, conn, token)
	result.Timezone = settings.Timezone

	calendarIDs := conn.SubscribedCalendars()
	result.CalendarCount = len(calendarIDs)
	if refs := s.calendarMetadata(workCtx, conn, token, calendarIDs); refs != nil {
		settings.Calendars = refs
	}

	now := s.now()
	windowStart := now.AddDate(0, 0, -s.settings.TrailingDays)
	windowEnd := now.AddDate(0, 0, windowDays)

	for _, calendarID := range calendarIDs {
		count, err := s.syncCalendar(workCtx, conn, token, calendarID, windowStart, windowEnd)
		if err != nil {
			logger.Error("SyncService:SyncConnection:CalendarError", "connection_id", conn.ID, "calendar_id", calendarID, "error", err)
			result.CalendarErrors = append(result.CalendarErrors, dto.CalendarSyncError{CalendarID: calendarID, Error: err.Error()})
			continue
		}
		result.EventCount += count
	}

	if len(result.CalendarErrors) == len(calendarIDs) {
		msgs := make([]string, 0, len(result.CalendarErrors))
		for _, ce := range result.CalendarErrors {
			msgs = append(msgs, ce.CalendarID+": "+ce.Error)
		}
		result.Error = "all calendars failed to sync: " + strings.Join(msgs, "; ")
		s.markError(ctx, conn, result.Error)
		return result
	}

	// rows of calendars outside this sync are no longer backed by the provider
	if err := s.events.DeleteWindowExcept(workCtx, conn.ID, calendarIDs, windowStart, windowEnd); err != nil {
		logger.Error("SyncService:SyncConnection:DeleteStale", "connection_id", conn.ID, "error", err)
		result.Error = fmt.Sprintf("remove stale mirrored events: %v", err)
		s.markError(ctx, conn, result.Error)
		return result
	}

	if err := s.connections.MarkSynced(ctx, conn.ID, now, settings); err != nil {
		logger.Error("SyncService:SyncConnection:MarkSynced", "connection_id", conn.ID, "error", err)
		result.Error = err.Error()
		return result
	}
	conn.SyncStatus = entity.SyncStatusSynced
	conn.LastSyncedAt = &now
	conn.SyncError = nil
	conn.Settings = settings

	logger.Info("SyncService:SyncConnection:Success",
		"connection_id", conn.ID,
		"events", result.EventCount,
		"calendars", result.CalendarCount,
		"failed_calendars", len(result.CalendarErrors),
		"timezone", result.Timezone,
	)
	return result
}

func (s *syncService) syncCalendar(ctx context.Context, conn *entity.Connection, token, calendarID string, windowStart, windowEnd time.Time) (int, error) {
	raw, err := s.client.ListEvents(ctx, token, calendarID, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	mirrored := make([]entity.MirroredEvent, 0, len(raw))
	for _, ev := range raw {
		if ev.Cancelled() {
			continue
		}
		mirrored = append(mirrored, toMirroredEvent(conn.ID, calendarID, ev))
	}

	if err := s.events.ReplaceWindow(ctx, conn.ID, calendarID, windowStart, windowEnd, mirrored); err != nil {
		return 0, fmt.Errorf("replace mirrored events: %w", err)
	}

	s.archiveRaw(ctx, conn.ID, calendarID, raw)
	return len(mirrored), nil
}

func (s *syncService) resolveTimezone(ctx context.Context, conn *entity.Connection, token string) string {
	tz, err := s.client.GetTimezone(ctx, token)
	if err == nil && tz != "" {
		return tz
	}
	logger.Warn("SyncService:ResolveTimezone:Fallback", "connection_id", conn.ID, "error", err)
	if conn.Settings.Timezone != "" {
		return conn.Settings.Timezone
	}
	return s.settings.DefaultTimezone
}

// calendarMetadata returns refs for the synced calendars, or nil when the listing fails.
func (s *syncService) calendarMetadata(ctx context.Context, conn *entity.Connection, token string, calendarIDs []string) []entity.CalendarRef {
	listed, err := s.client.ListCalendars(ctx, token)
	if err != nil {
		logger.Warn("SyncService:CalendarMetadata:ListError", "connection_id", conn.ID, "error", err)
		return nil
	}

	wanted := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		wanted[id] = true
	}

	refs := make([]entity.CalendarRef, 0, len(calendarIDs))
	for _, cal := range listed {
		if wanted[cal.ID] || (cal.Primary && wanted["primary"]) {
			refs = append(refs, entity.CalendarRef{ID: cal.ID, Summary: cal.Summary, TimeZone: cal.TimeZone, Primary: cal.Primary})
		}
	}
	return refs
}

func (s *syncService) archiveRaw(ctx context.Context, connectionID uuid.UUID, calendarID string, events []provider.RawEvent) {
	if s.archive == nil || !s.archive.Enabled() {
		return
	}
	payloads := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		payloads = append(payloads, ev.Raw)
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		logger.Warn("SyncService:Archive:MarshalError", "connection_id", connectionID, "error", err)
		return
	}
	key := fmt.Sprintf("calendar-sync/%s/%s/%s.json", connectionID, slug.Make(calendarID), s.now().UTC().Format("20060102T150405Z"))
	if err := s.archive.Put(ctx, key, body); err != nil {
		logger.Warn("SyncService:Archive:PutError", "connection_id", connectionID, "key", key, "error", err)
	}
}

func (s *syncService) markError(ctx context.Context, conn *entity.Connection, msg string) {
	if err := s.connections.UpdateSyncStatus(ctx, conn.ID, entity.SyncStatusError, &msg); err != nil {
		logger.Error("SyncService:MarkError:Error", "connection_id", conn.ID, "error", err)
	}
	conn.SyncStatus = entity.SyncStatusError
	conn.SyncError = &msg
}

func (s *syncService) SyncConnectionByID(ctx context.Context, connectionID uuid.UUID, windowDays int) (dto.SyncResult, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return dto.SyncResult{}, err
	}
	if conn == nil {
		return dto.SyncResult{}, errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	return s.SyncConnection(ctx, conn, windowDays), nil
}

// Sync handles a caller-initiated sync: one connection, all of the caller's
// connections for a provider, or a calendar listing without syncing.
func (s *syncService) Sync(ctx context.Context, userID uuid.UUID, req *dto.SyncRequest) (*dto.SyncResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = entity.ProviderGoogle
	}

	var connections []entity.Connection
	if req.ConnectionID != nil {
		conn, err := s.connections.GetByID(ctx, *req.ConnectionID)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
		}
		if conn == nil || conn.UserID != userID {
			return nil, errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
		}
		connections = append(connections, *conn)
	} else {
		list, err := s.connections.ListByUser(ctx, userID, providerName)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connections", err)
		}
		connections = list
	}

	if len(connections) == 0 {
		return nil, errors.NewAppError(errors.ErrNotFound, "no calendar connected", nil)
	}

	if req.Action == dto.ActionListCalendars {
		return s.listCalendars(ctx, &connections[0])
	}
	if req.Action != "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "unsupported sync action: "+req.Action, nil)
	}

	resp := &dto.SyncResponse{Results: make([]dto.SyncResult, 0, len(connections))}
	for i := range connections {
		resp.Results = append(resp.Results, s.SyncConnection(ctx, &connections[i], req.SyncDays))
	}
	return resp, nil
}

func (s *syncService) listCalendars(ctx context.Context, conn *entity.Connection) (*dto.SyncResponse, error) {
	token, err := s.credentials.GetValidAccessToken(ctx, conn)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrCalendarAuth, "calendar credentials are no longer valid, reconnect the calendar", err)
	}
	calendars, err := s.client.ListCalendars(ctx, token)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrCalendarProvider, "failed to list calendars", err)
	}

	resp := &dto.SyncResponse{Calendars: make([]dto.CalendarInfo, 0, len(calendars))}
	for _, cal := range calendars {
		resp.Calendars = append(resp.Calendars, dto.CalendarInfo{
			ID:         cal.ID,
			Summary:    cal.Summary,
			TimeZone:   cal.TimeZone,
			Primary:    cal.Primary,
			AccessRole: cal.AccessRole,
		})
	}
	return resp, nil
}

func toMirroredEvent(connectionID uuid.UUID, calendarID string, ev provider.RawEvent) entity.MirroredEvent {
	return entity.MirroredEvent{
		ID:              entity.MirroredEventID(connectionID, ev.ID),
		ConnectionID:    connectionID,
		CalendarID:      calendarID,
		ExternalEventID: ev.ID,
		Title:           ev.Title,
		Description:     ev.Description,
		StartTime:       ev.Start,
		EndTime:         ev.End,
		IsAllDay:        ev.IsAllDay,
		Location:        ev.Location,
		Status:          ev.Status,
		IsBusy:          ev.IsBusy,
		MeetingLink:     ev.MeetingLink,
		RawPayload:      []byte(ev.Raw),
	}
}

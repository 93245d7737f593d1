package repository

import (
	"context"
	"time"

	"smartschedule/core/database"
	"smartschedule/modules/calendar/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type EventRepository interface {
	// ReplaceWindow swaps every mirrored event of one calendar overlapping [start, end) for events.
	ReplaceWindow(ctx context.Context, connectionID uuid.UUID, calendarID string, start, end time.Time, events []entity.MirroredEvent) error
	// DeleteWindowExcept removes the connection's events overlapping [start, end) whose calendar is not in keep.
	DeleteWindowExcept(ctx context.Context, connectionID uuid.UUID, keep []string, start, end time.Time) error
	Upsert(ctx context.Context, event *entity.MirroredEvent) error
	DeleteByExternalID(ctx context.Context, connectionID uuid.UUID, externalEventID string) error
	ListBusyBetween(ctx context.Context, connectionIDs []uuid.UUID, start, end time.Time) ([]entity.MirroredEvent, error)
}

const eventColumns = `id, connection_id, calendar_id, external_event_id, title, description, start_time, end_time,
	is_all_day, location, status, is_busy, meeting_link, raw_payload, created_at, updated_at`

const upsertEventQuery = `
	INSERT INTO calendar_events (id, connection_id, calendar_id, external_event_id, title, description,
		start_time, end_time, is_all_day, location, status, is_busy, meeting_link, raw_payload)
	VALUES (:id, :connection_id, :calendar_id, :external_event_id, :title, :description,
		:start_time, :end_time, :is_all_day, :location, :status, :is_busy, :meeting_link, :raw_payload)
	ON CONFLICT (connection_id, external_event_id) DO UPDATE SET
		calendar_id = EXCLUDED.calendar_id,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		start_time = EXCLUDED.start_time,
		end_time = EXCLUDED.end_time,
		is_all_day = EXCLUDED.is_all_day,
		location = EXCLUDED.location,
		status = EXCLUDED.status,
		is_busy = EXCLUDED.is_busy,
		meeting_link = EXCLUDED.meeting_link,
		raw_payload = EXCLUDED.raw_payload,
		updated_at = NOW()
`

type eventRepository struct {
	db database.IDatabase
}

func NewEventRepository(db database.IDatabase) EventRepository {
	return &eventRepository{db: db}
}

func normalizeEvent(ev *entity.MirroredEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = entity.MirroredEventID(ev.ConnectionID, ev.ExternalEventID)
	}
	if len(ev.RawPayload) == 0 {
		ev.RawPayload = []byte("{}")
	}
}

func (r *eventRepository) ReplaceWindow(ctx context.Context, connectionID uuid.UUID, calendarID string, start, end time.Time, events []entity.MirroredEvent) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM calendar_events
			WHERE connection_id = $1 AND calendar_id = $2 AND start_time < $3 AND end_time > $4`,
			connectionID, calendarID, end, start,
		)
		if err != nil {
			return err
		}

		for i := range events {
			ev := events[i]
			ev.ConnectionID = connectionID
			ev.CalendarID = calendarID
			normalizeEvent(&ev)
			if _, err := tx.NamedExecContext(ctx, upsertEventQuery, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *eventRepository) DeleteWindowExcept(ctx context.Context, connectionID uuid.UUID, keep []string, start, end time.Time) error {
	if len(keep) == 0 {
		return r.db.ExecContext(ctx, `
			DELETE FROM calendar_events
			WHERE connection_id = $1 AND start_time < $2 AND end_time > $3`,
			connectionID, end, start,
		)
	}

	query, args, err := sqlx.In(`DELETE FROM calendar_events
		WHERE connection_id = ? AND calendar_id NOT IN (?) AND start_time < ? AND end_time > ?`,
		connectionID, keep, end, start)
	if err != nil {
		return err
	}
	return r.db.ExecContext(ctx, r.db.Rebind(query), args...)
}

func (r *eventRepository) Upsert(ctx context.Context, event *entity.MirroredEvent) error {
	normalizeEvent(event)
	_, err := r.db.NamedExecContext(ctx, upsertEventQuery, event)
	return err
}

func (r *eventRepository) DeleteByExternalID(ctx context.Context, connectionID uuid.UUID, externalEventID string) error {
	return r.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE connection_id = $1 AND external_event_id = $2`,
		connectionID, externalEventID,
	)
}

// ListBusyBetween returns busy events of the given connections overlapping [start, end), ordered by start.
func (r *eventRepository) ListBusyBetween(ctx context.Context, connectionIDs []uuid.UUID, start, end time.Time) ([]entity.MirroredEvent, error) {
	if len(connectionIDs) == 0 {
		return []entity.MirroredEvent{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+eventColumns+` FROM calendar_events
		WHERE connection_id IN (?) AND is_busy = TRUE AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC`, connectionIDs, end, start)
	if err != nil {
		return nil, err
	}

	var events []entity.MirroredEvent
	if err := r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return events, nil
}

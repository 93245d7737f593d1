package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// MirroredEvent is a local copy of a provider event used for busy/free lookups.
type MirroredEvent struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	ConnectionID    uuid.UUID      `db:"connection_id" json:"connection_id"`
	CalendarID      string         `db:"calendar_id" json:"calendar_id"`
	ExternalEventID string         `db:"external_event_id" json:"external_event_id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description,omitempty"`
	StartTime       time.Time      `db:"start_time" json:"start_time"`
	EndTime         time.Time      `db:"end_time" json:"end_time"`
	IsAllDay        bool           `db:"is_all_day" json:"is_all_day"`
	Location        string         `db:"location" json:"location,omitempty"`
	Status          string         `db:"status" json:"status"`
	IsBusy          bool           `db:"is_busy" json:"is_busy"`
	MeetingLink     string         `db:"meeting_link" json:"meeting_link,omitempty"`
	RawPayload      types.JSONText `db:"raw_payload" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (MirroredEvent) TableName() string {
	return "calendar_events"
}

var mirroredEventNamespace = uuid.MustParse("5b0f3c1e-8d0a-4c7e-9a57-2f6f1f0c9b61")

// MirroredEventID derives a stable row id so a re-sync rewrites the same ids.
func MirroredEventID(connectionID uuid.UUID, externalEventID string) uuid.UUID {
	return uuid.NewSHA1(mirroredEventNamespace, []byte(connectionID.String()+"/"+externalEventID))
}

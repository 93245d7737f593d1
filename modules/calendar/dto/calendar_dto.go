package dto

import (
	"time"

	"github.com/google/uuid"
)

const ProviderGoogle = "google"

// ========== Connection DTOs ==========

type CalendarConnectionResponse struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	ProviderEmail string     `json:"provider_email"`
	SyncStatus    string     `json:"sync_status"`
	SyncError     *string    `json:"sync_error,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	Timezone      string     `json:"timezone,omitempty"`
	CalendarIDs   []string   `json:"calendar_ids,omitempty"`
	ConnectedAt   string     `json:"connected_at"`
}

type CalendarConnectionListResponse struct {
	Connections []CalendarConnectionResponse `json:"connections"`
}

// ========== Sync DTOs ==========

const ActionListCalendars = "listCalendars"

type SyncRequest struct {
	ConnectionID *uuid.UUID `json:"connection_id,omitempty"`
	SyncDays     int        `json:"sync_days,omitempty"`
	Action       string     `json:"action,omitempty"`
	Provider     string     `json:"provider,omitempty"`
}

type CalendarSyncError struct {
	CalendarID string `json:"calendar_id"`
	Error      string `json:"error"`
}

// SyncResult is the outcome of one sync attempt for one connection.
type SyncResult struct {
	ConnectionID   uuid.UUID           `json:"connection_id"`
	EventCount     int                 `json:"event_count"`
	CalendarCount  int                 `json:"calendar_count"`
	Timezone       string              `json:"timezone,omitempty"`
	CalendarErrors []CalendarSyncError `json:"calendar_errors,omitempty"`
	Error          string              `json:"error,omitempty"`
}

func (r SyncResult) OK() bool {
	return r.Error == ""
}

type CalendarInfo struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	TimeZone   string `json:"time_zone,omitempty"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"access_role,omitempty"`
}

type SyncResponse struct {
	Results   []SyncResult   `json:"results,omitempty"`
	Calendars []CalendarInfo `json:"calendars,omitempty"`
}

// ========== Event DTOs ==========

const (
	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionCreateFocusBlock = "createFocusBlock"
)

type EventMutationRequest struct {
	Action       string    `json:"action"`
	ConnectionID uuid.UUID `json:"connection_id"`
	CalendarID   string    `json:"calendar_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	StartTime    string    `json:"start_time,omitempty"` // RFC3339
	EndTime      string    `json:"end_time,omitempty"`   // RFC3339
	Timezone     string    `json:"timezone,omitempty"`
	Attendees    []string  `json:"attendees,omitempty"`
}

type EventResponse struct {
	EventID     string    `json:"event_id"`
	CalendarID  string    `json:"calendar_id"`
	Title       string    `json:"title,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
	Status      string    `json:"status,omitempty"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	Deleted     bool      `json:"deleted,omitempty"`
}

// ========== Availability DTOs ==========

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityRequest asks for one day's availability; nil hours fall back to the configured working day.
type AvailabilityRequest struct {
	Date            string `query:"date"` // YYYY-MM-DD
	DayStartHour    *int   `query:"day_start_hour"`
	DayEndHour      *int   `query:"day_end_hour"`
	MinGapMinutes   int    `query:"min_gap_minutes"`
	DurationMinutes int    `query:"duration_minutes"`
	Timezone        string `query:"timezone"`
}

type AvailabilityResponse struct {
	Date      string     `json:"date"`
	Timezone  string     `json:"timezone"`
	Busy      []TimeSlot `json:"busy"`
	Gaps      []TimeSlot `json:"gaps"`
	FreeSlots []TimeSlot `json:"free_slots"`
}

type BusyResponse struct {
	Busy   bool       `json:"busy"`
	Events []TimeSlot `json:"events"`
}

// ========== OAuth DTOs ==========

type OAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type OAuthCallbackParams struct {
	Code  string `query:"code"`
	State string `query:"state"`
	Error string `query:"error"`
}

package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"smartschedule/core/entity"

	"github.com/google/uuid"
)

const ProviderGoogle = "google"

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// CalendarRef is calendar metadata recorded on the connection after a sync.
type CalendarRef struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	TimeZone string `json:"time_zone,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

type ConnectionSettings struct {
	Timezone       string        `json:"timezone,omitempty"`
	CalendarIDs    []string      `json:"calendar_ids,omitempty"`
	BufferMinutes  int           `json:"buffer_minutes,omitempty"`
	AutoBlockFocus bool          `json:"auto_block_focus,omitempty"`
	Calendars      []CalendarRef `json:"calendars,omitempty"`
}

func (s ConnectionSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ConnectionSettings) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, s)
}

// Connection links one user to one provider calendar account.
type Connection struct {
	entity.BaseEntity
	UserID            uuid.UUID          `db:"user_id" json:"user_id"`
	Provider          string             `db:"provider" json:"provider"`
	ProviderEmail     string             `db:"provider_email" json:"provider_email"`
	ProviderAccountID string             `db:"provider_account_id" json:"provider_account_id"`
	AccessToken       string             `db:"access_token" json:"-"`
	RefreshToken      string             `db:"refresh_token" json:"-"`
	TokenExpiresAt    time.Time          `db:"token_expires_at" json:"token_expires_at"`
	SyncStatus        SyncStatus         `db:"sync_status" json:"sync_status"`
	LastSyncedAt      *time.Time         `db:"last_synced_at" json:"last_synced_at,omitempty"`
	SyncError         *string            `db:"sync_error" json:"sync_error,omitempty"`
	Settings          ConnectionSettings `db:"settings" json:"settings"`
}

func (Connection) TableName() string {
	return "calendar_connections"
}

// TokenValidAt reports whether the access token can be used at now, leaving buffer before expiry.
func (c *Connection) TokenValidAt(now time.Time, buffer time.Duration) bool {
	return c.AccessToken != "" && c.TokenExpiresAt.After(now.Add(buffer))
}

// SubscribedCalendars returns the configured calendar ids, or the primary calendar.
func (c *Connection) SubscribedCalendars() []string {
	if len(c.Settings.CalendarIDs) > 0 {
		return c.Settings.CalendarIDs
	}
	return []string{"primary"}
}

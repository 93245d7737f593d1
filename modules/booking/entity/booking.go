package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a guest's request for time on a host's calendar.
type Booking struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	HostID          *uuid.UUID    `db:"host_id" json:"host_id,omitempty"`
	Title           string        `db:"title" json:"title"`
	Description     *string       `db:"description" json:"description,omitempty"`
	Status          BookingStatus `db:"status" json:"status"`
	Timezone        string        `db:"timezone" json:"timezone"`
	StartDate       *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time    `db:"end_date" json:"end_date,omitempty"`
	MeetingLink     *string       `db:"meeting_link" json:"meeting_link,omitempty"`
	ProviderEventID *string       `db:"provider_event_id" json:"provider_event_id,omitempty"`
	Preferences     *string       `db:"preferences" json:"preferences,omitempty"` // JSONB as string
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

type GuestPreferences struct {
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
}

// Guest returns the guest details stored in preferences; malformed JSON yields empty values.
func (b *Booking) Guest() GuestPreferences {
	var p GuestPreferences
	if b.Preferences != nil && *b.Preferences != "" {
		_ = json.Unmarshal([]byte(*b.Preferences), &p)
	}
	p.GuestEmail = strings.TrimSpace(p.GuestEmail)
	return p
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CalendarRef describes one calendar visible to the account.
type CalendarRef struct {
	ID         string
	Summary    string
	TimeZone   string
	Primary    bool
	AccessRole string
}

// RawEvent is a provider event converted at the client boundary.
type RawEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
	IsAllDay    bool
	IsBusy      bool
	MeetingLink string
	Raw         json.RawMessage
}

func (e RawEvent) Cancelled() bool {
	return e.Status == "cancelled"
}

// EventPayload is the set of fields this service writes to the provider.
type EventPayload struct {
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	TimeZone     string
	Attendees    []string
	Visibility   string
	Transparency string
	// RequestConference asks the provider to generate a video meeting.
	RequestConference bool
	// ConferenceRequestID must be unique per create request.
	ConferenceRequestID string
	SendUpdates         bool
}

type Account struct {
	ID    string
	Email string
}

// Client issues authenticated calendar requests. It holds no credential state.
type Client interface {
	ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time) ([]RawEvent, error)
	ListCalendars(ctx context.Context, accessToken string) ([]CalendarRef, error)
	GetTimezone(ctx context.Context, accessToken string) (string, error)
	CreateEvent(ctx context.Context, accessToken, calendarID string, payload EventPayload) (*RawEvent, error)
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, payload EventPayload) (*RawEvent, error)
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// AccountFetcher looks up the account a token belongs to.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, accessToken string) (*Account, error)
}

// ProviderError carries the provider's HTTP status and body unchanged.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func statusOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// IsGone reports a 410, which delete callers treat as already deleted.
func IsGone(err error) bool {
	return statusOf(err) == http.StatusGone
}

func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a rejected access token.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smartschedule/core/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const pageSize = 250

// GoogleClient talks to the Google Calendar v3 API.
type GoogleClient struct {
	httpClient *http.Client
	endpoint   string
}

type Option func(*GoogleClient)

// WithHTTPClient sets the base transport that carries the bearer token.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GoogleClient) { g.httpClient = c }
}

// WithEndpoint overrides the API root, e.g. to point at a test server.
func WithEndpoint(endpoint string) Option {
	return func(g *GoogleClient) { g.endpoint = endpoint }
}

func NewGoogleClient(opts ...Option) *GoogleClient {
	g := &GoogleClient{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleClient) clientOptions(ctx context.Context, accessToken string) []option.ClientOption {
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	return opts
}

func (g *GoogleClient) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	svc, err := calendar.NewService(ctx, g.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ProviderError{Op: op, StatusCode: gerr.Code, Body: gerr.Body, Err: err}
	}
	return &ProviderError{Op: op, Err: err}
}

// ListEvents expands recurring events into single occurrences and follows pagination.
func (g *GoogleClient) ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var events []RawEvent
	err = svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize).
		Pages(ctx, func(page *calendar.Events) error {
			loc := loadLocation(page.TimeZone)
			for _, item := range page.Items {
				ev, err := convertEvent(calendarID, item, loc)
				if err != nil {
					logger.Warn("GoogleClient:ListEvents:SkipEvent", "calendar_id", calendarID, "event_id", item.Id, "error", err)
					continue
				}
				events = append(events, *ev)
			}
			return nil
		})
	if err != nil {
		return nil, wrapErr("list_events", err)
	}
	return events, nil
}

func (g *GoogleClient) ListCalendars(ctx context.Context, accessToken string) ([]CalendarRef, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var calendars []CalendarRef
	err = svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, CalendarRef{
				ID:         item.Id,
				Summary:    item.Summary,
				TimeZone:   item.TimeZone,
				Primary:    item.Primary,
				AccessRole: item.AccessRole,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("list_calendars", err)
	}
	return calendars, nil
}

func (g *GoogleClient) GetTimezone(ctx context.Context, accessToken string) (string, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	setting, err := svc.Settings.Get("timezone").Context(ctx).Do()
	if err != nil {
		return "", wrapErr("get_timezone", err)
	}
	return setting.Value, nil
}

func (g *GoogleClient) CreateEvent(ctx context.Context, accessToken, calendarID string, payload EventPayload) (*RawEvent, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Events.Insert(calendarID, buildEvent(payload)).SendUpdates(sendUpdates(payload))
	if payload.RequestConference {
		call = call.ConferenceDataVersion(1)
	}
	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("create_event", err)
	}
	return convertEvent(calendarID, created, loadLocation(payload.TimeZone))
}

// UpdateEvent patches only the fields set on payload.
func (g *GoogleClient) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, payload EventPayload) (*RawEvent, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	updated, err := svc.Events.Patch(calendarID, eventID, buildEvent(payload)).
		SendUpdates(sendUpdates(payload)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapErr("update_event", err)
	}
	return convertEvent(calendarID, updated, loadLocation(payload.TimeZone))
}

func (g *GoogleClient) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapErr("delete_event", err)
	}
	return nil
}

func (g *GoogleClient) FetchAccount(ctx context.Context, accessToken string) (*Account, error) {
	svc, err := oauth2api.NewService(ctx, g.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("fetch_account", err)
	}
	return &Account{ID: info.Id, Email: info.Email}, nil
}

func sendUpdates(p EventPayload) string {
	if p.SendUpdates {
		return "all"
	}
	return "none"
}

func buildEvent(p EventPayload) *calendar.Event {
	ev := &calendar.Event{
		Summary:      p.Title,
		Description:  p.Description,
		Location:     p.Location,
		Visibility:   p.Visibility,
		Transparency: p.Transparency,
	}
	if !p.Start.IsZero() {
		ev.Start = &calendar.EventDateTime{DateTime: p.Start.Format(time.RFC3339), TimeZone: p.TimeZone}
	}
	if !p.End.IsZero() {
		ev.End = &calendar.EventDateTime{DateTime: p.End.Format(time.RFC3339), TimeZone: p.TimeZone}
	}
	for _, email := range p.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: email})
	}
	if p.RequestConference {
		ev.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             p.ConferenceRequestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}
	return ev
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseEventTime(dt *calendar.EventDateTime, fallback *time.Location) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing date")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	loc := fallback
	if dt.TimeZone != "" {
		loc = loadLocation(dt.TimeZone)
	}
	t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
	return t, true, err
}

// MeetingLink returns the hangout link, or the first video entry point.
func MeetingLink(ev *calendar.Event) string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData == nil {
		return ""
	}
	for _, ep := range ev.ConferenceData.EntryPoints {
		if ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func convertEvent(calendarID string, item *calendar.Event, loc *time.Location) (*RawEvent, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}

	ev := &RawEvent{
		ID:          item.Id,
		CalendarID:  calendarID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		IsBusy:      item.Transparency != "transparent",
		MeetingLink: MeetingLink(item),
		Raw:         raw,
	}
	// cancelled occurrences may come back without times
	if ev.Cancelled() && item.Start == nil {
		return ev, nil
	}

	if ev.Start, ev.IsAllDay, err = parseEventTime(item.Start, loc); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if ev.End, _, err = parseEventTime(item.End, loc); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	return ev, nil
}

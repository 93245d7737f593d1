package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/middleware"
	"smartschedule/core/utils"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type stubOAuth struct {
	service.OAuthService
	outcome *service.HandshakeOutcome
	params  dto.OAuthCallbackParams
}

func (s *stubOAuth) HandleCallback(_ context.Context, params dto.OAuthCallbackParams) *service.HandshakeOutcome {
	s.params = params
	return s.outcome
}

type stubAvailability struct {
	service.AvailabilityService
	req      dto.AvailabilityRequest
	busyFrom time.Time
}

func (s *stubAvailability) DayAvailability(_ context.Context, _ uuid.UUID, req *dto.AvailabilityRequest) (*dto.AvailabilityResponse, error) {
	s.req = *req
	return &dto.AvailabilityResponse{Date: req.Date, Timezone: "UTC"}, nil
}

func (s *stubAvailability) IsBusy(_ context.Context, _ uuid.UUID, start, _ time.Time) (*dto.BusyResponse, error) {
	s.busyFrom = start
	return &dto.BusyResponse{Busy: true}, nil
}

type stubConnections struct {
	service.ConnectionService
	err error
}

func (s *stubConnections) Disconnect(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

// fakeAuth authenticates every request as userID.
func fakeAuth(userID uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextTokenData, &utils.TokenClaims{UserID: userID, Scope: utils.ScopeTokenAccess})
			return next(c)
		}
	}
}

func newTestServer(oauth service.OAuthService, conns service.ConnectionService, avail service.AvailabilityService) *echo.Echo {
	e := echo.New()
	ctrl := NewCalendarController(conns, oauth, nil, nil, avail)
	e.GET("/api/v1/public/calendar/oauth/callback", ctrl.OAuthCallback)
	private := e.Group("/api/v1/private/calendar", fakeAuth(uuid.New()))
	private.DELETE("/connections/:id", ctrl.DisconnectCalendar)
	private.GET("/availability", ctrl.GetAvailability)
	private.GET("/busy", ctrl.GetBusy)
	return e
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestOAuthCallbackSuccessPage(t *testing.T) {
	oauth := &stubOAuth{outcome: &service.HandshakeOutcome{
		State:       service.HandshakeConnected,
		RedirectURL: "https://app.example.com/settings",
	}}
	e := newTestServer(oauth, nil, nil)

	rec := serve(e, http.MethodGet, "/api/v1/public/calendar/oauth/callback?code=abc&state=xyz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"calendar-success"`) || !strings.Contains(body, `"https://app.example.com"`) {
		t.Fatalf("body = %s", body)
	}
	if oauth.params.Code != "abc" || oauth.params.State != "xyz" {
		t.Fatalf("params = %+v", oauth.params)
	}
}

func TestOAuthCallbackErrorPage(t *testing.T) {
	oauth := &stubOAuth{outcome: &service.HandshakeOutcome{
		State:     service.HandshakeFailed,
		ErrorCode: service.HandshakeInvalidGrant,
	}}
	e := newTestServer(oauth, nil, nil)

	rec := serve(e, http.MethodGet, "/api/v1/public/calendar/oauth/callback?error=access_denied")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"calendar-error"`) || !strings.Contains(body, `"invalid_grant"`) || !strings.Contains(body, `"*"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestTargetOrigin(t *testing.T) {
	for in, want := range map[string]string{
		"":                                "*",
		"/settings":                       "*",
		"https://app.example.com/a?b=c":   "https://app.example.com",
		"http://localhost:3000/calendars": "http://localhost:3000",
	} {
		if got := targetOrigin(in); got != want {
			t.Errorf("targetOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetAvailabilityBindsQuery(t *testing.T) {
	avail := &stubAvailability{}
	e := newTestServer(nil, nil, avail)

	rec := serve(e, http.MethodGet, "/api/v1/private/calendar/availability?date=2025-03-11&day_start_hour=8&day_end_hour=17&min_gap_minutes=45&duration_minutes=60")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := avail.req
	if got.Date != "2025-03-11" || got.MinGapMinutes != 45 || got.DurationMinutes != 60 {
		t.Fatalf("request = %+v", got)
	}
	if got.DayStartHour == nil || *got.DayStartHour != 8 || got.DayEndHour == nil || *got.DayEndHour != 17 {
		t.Fatalf("hours = %v, %v", got.DayStartHour, got.DayEndHour)
	}
}

func TestGetAvailabilityLeavesMissingHoursUnset(t *testing.T) {
	avail := &stubAvailability{}
	e := newTestServer(nil, nil, avail)

	rec := serve(e, http.MethodGet, "/api/v1/private/calendar/availability?date=2025-03-11&day_start_hour=10")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if avail.req.DayStartHour == nil || *avail.req.DayStartHour != 10 || avail.req.DayEndHour != nil {
		t.Fatalf("hours = %v, %v", avail.req.DayStartHour, avail.req.DayEndHour)
	}
}

func TestGetBusyValidatesTimes(t *testing.T) {
	avail := &stubAvailability{}
	e := newTestServer(nil, nil, avail)

	rec := serve(e, http.MethodGet, "/api/v1/private/calendar/busy?start_time=yesterday&end_time=2025-03-11T10:00:00Z")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = serve(e, http.MethodGet, "/api/v1/private/calendar/busy?start_time=2025-03-11T09:00:00Z&end_time=2025-03-11T10:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data dto.BusyResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Data.Busy || !avail.busyFrom.Equal(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("body = %+v, start = %v", body, avail.busyFrom)
	}
}

func TestDisconnectCalendar(t *testing.T) {
	e := newTestServer(nil, &stubConnections{}, nil)
	if rec := serve(e, http.MethodDelete, "/api/v1/private/calendar/connections/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d", rec.Code)
	}
	if rec := serve(e, http.MethodDelete, "/api/v1/private/calendar/connections/"+uuid.NewString()); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	e = newTestServer(nil, &stubConnections{err: errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)}, nil)
	if rec := serve(e, http.MethodDelete, "/api/v1/private/calendar/connections/"+uuid.NewString()); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d", rec.Code)
	}
}

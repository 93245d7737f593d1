package controller

import (
	"net/http"
	"time"

	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/core/middleware"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	controller.BaseController
	connections  service.ConnectionService
	oauth        service.OAuthService
	syncs        service.SyncService
	events       service.EventService
	availability service.AvailabilityService
}

func NewCalendarController(
	connections service.ConnectionService,
	oauth service.OAuthService,
	syncs service.SyncService,
	events service.EventService,
	availability service.AvailabilityService,
) *CalendarController {
	return &CalendarController{
		BaseController: controller.NewBaseController(),
		connections:    connections,
		oauth:          oauth,
		syncs:          syncs,
		events:         events,
		availability:   availability,
	}
}

// GetConnections returns all calendar connections for the current user
// GET /api/v1/private/calendar/connections
func (c *CalendarController) GetConnections(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	resp, err := c.connections.List(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Calendar connections retrieved successfully")
}

// DisconnectCalendar removes a connection and its mirrored events
// DELETE /api/v1/private/calendar/connections/:id
func (c *CalendarController) DisconnectCalendar(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	connectionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid connection id", err))
	}

	if err := c.connections.Disconnect(ctx.Request().Context(), userID, connectionID); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Disconnected successfully")
}

// OAuthURL starts the calendar connection handshake
// GET /api/v1/private/calendar/oauth/url?redirect_url=...
func (c *CalendarController) OAuthURL(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	resp, err := c.oauth.AuthorizationURL(ctx.Request().Context(), userID, ctx.QueryParam("redirect_url"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Authorization URL created")
}

// OAuthCallback finishes the handshake inside the popup and reports back to the opener
// GET /api/v1/public/calendar/oauth/callback?code=...&state=...
func (c *CalendarController) OAuthCallback(ctx echo.Context) error {
	params := dto.OAuthCallbackParams{
		Code:  ctx.QueryParam("code"),
		State: ctx.QueryParam("state"),
		Error: ctx.QueryParam("error"),
	}

	outcome := c.oauth.HandleCallback(ctx.Request().Context(), params)

	page, err := renderCallbackPage(outcome)
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "failed to render callback page", err))
	}
	status := http.StatusOK
	if outcome.State == service.HandshakeFailed {
		status = http.StatusBadRequest
	}
	return ctx.HTML(status, page)
}

// Sync runs an on-demand sync or lists the provider's calendars
// POST /api/v1/private/calendar/sync
func (c *CalendarController) Sync(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	var req dto.SyncRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}
	if req.SyncDays < 0 || req.SyncDays > 365 {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "sync_days must be between 0 and 365", nil))
	}

	resp, err := c.syncs.Sync(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Calendar sync finished")
}

// MutateEvent creates, updates or deletes a provider event
// POST /api/v1/private/calendar/events
func (c *CalendarController) MutateEvent(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	var req dto.EventMutationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}
	if req.ConnectionID == uuid.Nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "connection_id is required", nil))
	}

	resp, err := c.events.Mutate(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	if req.Action == dto.ActionCreate || req.Action == dto.ActionCreateFocusBlock {
		return c.CreatedResponse(ctx, resp, "Event created successfully")
	}
	return c.SuccessResponse(ctx, resp, "Event updated successfully")
}

// GetAvailability returns busy time, gaps and free slots for one day
// GET /api/v1/private/calendar/availability?date=YYYY-MM-DD
func (c *CalendarController) GetAvailability(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	var req dto.AvailabilityRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid query parameters", err))
	}

	resp, err := c.availability.DayAvailability(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Availability retrieved successfully")
}

// GetBusy reports whether the user is busy in an interval
// GET /api/v1/private/calendar/busy?start_time=...&end_time=...
func (c *CalendarController) GetBusy(ctx echo.Context) error {
	userID, appErr := middleware.GetUserID(ctx)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	startTimeStr := ctx.QueryParam("start_time")
	endTimeStr := ctx.QueryParam("end_time")
	if startTimeStr == "" || endTimeStr == "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "start_time and end_time are required", nil))
	}
	startTime, err := time.Parse(time.RFC3339, startTimeStr)
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid start_time format", err))
	}
	endTime, err := time.Parse(time.RFC3339, endTimeStr)
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid end_time format", err))
	}

	resp, err := c.availability.IsBusy(ctx.Request().Context(), userID, startTime, endTime)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Busy status retrieved successfully")
}
